package domain

import (
	"fmt"
	"net"
)

// Well known header field values used in rule matches.
const (
	// EtherTypeIPv4 is the Ethernet type for IPv4 payloads
	EtherTypeIPv4 uint16 = 0x0800
	// IPProtoICMP is the IP protocol number for ICMP
	IPProtoICMP uint8 = 1
)

// ActionType identifies one kind of forwarding-rule action
type ActionType int

const (
	// ActionRewriteSource rewrites the packet's source network address
	ActionRewriteSource ActionType = iota
	// ActionRewriteDestination rewrites the packet's destination network address
	ActionRewriteDestination
	// ActionOutput forwards the packet out of a switch port
	ActionOutput
)

// String returns the string representation of ActionType
func (t ActionType) String() string {
	switch t {
	case ActionRewriteSource:
		return "rewrite_source"
	case ActionRewriteDestination:
		return "rewrite_destination"
	case ActionOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Action is one step of a forwarding rule. Actions are ordered; rewrites must
// precede the output that emits the rewritten packet.
type Action struct {
	Type ActionType
	IP   net.IP
	Port uint16
}

// RewriteSource builds an action that rewrites the source address
func RewriteSource(ip net.IP) Action {
	return Action{Type: ActionRewriteSource, IP: ip}
}

// RewriteDestination builds an action that rewrites the destination address
func RewriteDestination(ip net.IP) Action {
	return Action{Type: ActionRewriteDestination, IP: ip}
}

// OutputTo builds an action that forwards out of the given port
func OutputTo(port uint16) Action {
	return Action{Type: ActionOutput, Port: port}
}

// Match describes the packet headers a forwarding rule applies to. Zero
// InPort and nil addresses are wildcards.
type Match struct {
	EtherType uint16
	IPProto   uint8
	InPort    uint16
	SrcIP     net.IP
	DstIP     net.IP
}

// RuleIntent describes a forwarding rule to be installed in the switch flow
// table. Intents are transient: produced by the core, handed to the
// collaborator, never retained.
type RuleIntent struct {
	Match   Match
	Actions []Action
}

// String returns a human readable description of the rule intent
func (r RuleIntent) String() string {
	return fmt.Sprintf("match{in=%d src=%s dst=%s} actions=%d",
		r.Match.InPort, r.Match.SrcIP, r.Match.DstIP, len(r.Actions))
}

// ReplyIntent describes a spoofed ARP reply to be emitted back to a
// requester. The transport adapter owns the byte-level frame encoding.
type ReplyIntent struct {
	SrcMAC  net.HardwareAddr
	DstMAC  net.HardwareAddr
	SrcIP   net.IP
	DstIP   net.IP
	OutPort uint16
}
