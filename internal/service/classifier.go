package service

import (
	"net"

	"github.com/sdnlb/vip-switch/internal/domain"
)

// Classifier decides which of the three routing cases an observed ARP
// request falls into. Exactly one classification applies to any event.
type Classifier struct {
	virtualIP net.IP
	registry  *ClientRegistry
}

// NewClassifier creates a classifier for the given virtual address
func NewClassifier(virtualIP net.IP, registry *ClientRegistry) *Classifier {
	return &Classifier{
		virtualIP: virtualIP.To4(),
		registry:  registry,
	}
}

// Classify returns the classification for one ARP request event.
//
// A request targeting the virtual address is ClassClientToVirtual regardless
// of whether the requester is already registered. A request targeting a
// known client address is ClassBackendToClient; the requester's identity is
// deliberately not validated against the backend list. Everything else is
// ClassIrrelevant, including a backend asking for an address that never
// registered as a client.
func (c *Classifier) Classify(ev domain.ARPRequestEvent) domain.Classification {
	target := ev.TargetIP.To4()
	if target == nil {
		return domain.ClassIrrelevant
	}

	if target.Equal(c.virtualIP) {
		return domain.ClassClientToVirtual
	}

	if _, ok := c.registry.LookupByAddress(target); ok {
		return domain.ClassBackendToClient
	}

	return domain.ClassIrrelevant
}
