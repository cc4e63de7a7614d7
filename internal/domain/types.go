package domain

import (
	"fmt"
	"net"
)

// Classification represents the routing-relevant category of an observed ARP request
type Classification int

const (
	// ClassIrrelevant indicates traffic that produces no rules and no reply
	ClassIrrelevant Classification = iota
	// ClassClientToVirtual indicates a client resolving the virtual service address
	ClassClientToVirtual
	// ClassBackendToClient indicates a backend resolving a known client address
	ClassBackendToClient
)

// String returns the string representation of Classification
func (c Classification) String() string {
	switch c {
	case ClassClientToVirtual:
		return "client_to_virtual"
	case ClassBackendToClient:
		return "backend_to_client"
	case ClassIrrelevant:
		return "irrelevant"
	default:
		return "unknown"
	}
}

// Backend represents a real server behind the virtual address. The pool of
// backends is ordered and fixed after startup; the index of a backend in the
// pool is meaningful and must never change.
type Backend struct {
	IP   net.IP           `json:"ip"`
	MAC  net.HardwareAddr `json:"mac"`
	Port uint16           `json:"port"`
}

// String returns a human readable description of the backend
func (b Backend) String() string {
	return fmt.Sprintf("%s(%s)@port%d", b.IP, b.MAC, b.Port)
}

// ClientRecord holds everything the balancer has learned about one client.
// A record is created the first time the client asks for the virtual address
// and is never removed. Position is the insertion order in the registry and
// drives the client's egress port.
type ClientRecord struct {
	IP           net.IP           `json:"ip"`
	MAC          net.HardwareAddr `json:"mac"`
	BackendIndex int              `json:"backend_index"`
	Position     int              `json:"position"`
}

// ARPRequestEvent is a parsed ARP request as observed at the switch. Only
// request opcodes reach the core; other ARP traffic is filtered by the
// transport adapter.
type ARPRequestEvent struct {
	SrcIP    net.IP
	SrcMAC   net.HardwareAddr
	TargetIP net.IP
	InPort   uint16
}

// PortMap makes the topology assumption behind port derivation explicit:
// clients occupy switch ports starting at ClientPortBase in registration
// order, backends occupy ports starting at BackendPortBase in pool order.
type PortMap struct {
	ClientPortBase  uint16 `yaml:"client_port_base"`
	BackendPortBase uint16 `yaml:"backend_port_base"`
}

// ClientPort returns the egress port for the client at the given registry position
func (m PortMap) ClientPort(position int) uint16 {
	return m.ClientPortBase + uint16(position)
}

// BackendPort returns the egress port for the backend at the given pool index
func (m PortMap) BackendPort(index int) uint16 {
	return m.BackendPortBase + uint16(index)
}
