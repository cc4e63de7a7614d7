package service

import (
	"net"

	"github.com/sdnlb/vip-switch/internal/domain"
)

// IntentBuilder turns classified ARP events into forwarding-rule and
// ARP-reply intents. The builder is stateless; all inputs arrive as
// arguments and nothing is retained between calls.
type IntentBuilder struct {
	virtualIP net.IP
	portMap   domain.PortMap
}

// NewIntentBuilder creates an intent builder for the given virtual address
// and topology port map
func NewIntentBuilder(virtualIP net.IP, portMap domain.PortMap) *IntentBuilder {
	return &IntentBuilder{
		virtualIP: virtualIP.To4(),
		portMap:   portMap,
	}
}

// ClientToVirtual builds the intents for a client resolving the virtual
// address, once the client's backend assignment is known.
//
// The rule matches ICMP-over-IPv4 arriving on the client's ingress port and
// destined to the virtual address, rewrites the destination to the assigned
// backend and outputs on the backend's port. The reply advertises the
// virtual address with the assigned backend's hardware identity.
func (b *IntentBuilder) ClientToVirtual(ev domain.ARPRequestEvent, assigned domain.Backend) (domain.RuleIntent, domain.ReplyIntent) {
	rule := domain.RuleIntent{
		Match: domain.Match{
			EtherType: domain.EtherTypeIPv4,
			IPProto:   domain.IPProtoICMP,
			InPort:    ev.InPort,
			DstIP:     b.virtualIP,
		},
		Actions: []domain.Action{
			domain.RewriteDestination(assigned.IP),
			domain.OutputTo(assigned.Port),
		},
	}

	reply := domain.ReplyIntent{
		SrcMAC:  assigned.MAC,
		DstMAC:  ev.SrcMAC,
		SrcIP:   b.virtualIP,
		DstIP:   ev.SrcIP,
		OutPort: ev.InPort,
	}

	return rule, reply
}

// BackendToClient builds the intents for a backend resolving a registered
// client's address.
//
// The rule matches ICMP-over-IPv4 from the backend's ingress port, source
// and destination, rewrites the source to the virtual address and outputs on
// the client's registry-derived port. The reply answers with the client's
// own address and recorded hardware identity, mirrored back to the
// requester.
func (b *IntentBuilder) BackendToClient(ev domain.ARPRequestEvent, client *domain.ClientRecord) (domain.RuleIntent, domain.ReplyIntent) {
	rule := domain.RuleIntent{
		Match: domain.Match{
			EtherType: domain.EtherTypeIPv4,
			IPProto:   domain.IPProtoICMP,
			InPort:    ev.InPort,
			SrcIP:     ev.SrcIP,
			DstIP:     client.IP,
		},
		Actions: []domain.Action{
			domain.RewriteSource(b.virtualIP),
			domain.OutputTo(b.portMap.ClientPort(client.Position)),
		},
	}

	reply := domain.ReplyIntent{
		SrcMAC:  client.MAC,
		DstMAC:  ev.SrcMAC,
		SrcIP:   client.IP,
		DstIP:   ev.SrcIP,
		OutPort: ev.InPort,
	}

	return rule, reply
}
