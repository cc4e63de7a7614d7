// Package ports defines the interfaces between the balancing core and the
// switch transport it drives.
//
// Following Hexagonal Architecture principles, these are the "ports" through
// which the core communicates with the outside world: the core never imports
// a transport package, and a transport adapter never reaches into core state.
package ports

import (
	"github.com/sdnlb/vip-switch/internal/domain"
)

// ========================================
// SECONDARY PORTS (Driven / outbound)
// ========================================

// RuleInstaller installs forwarding state on one attached switch.
type RuleInstaller interface {
	// InstallRule installs a single forwarding rule in the switch flow table
	InstallRule(rule domain.RuleIntent) error

	// DeleteAllRules removes every rule from the switch flow table
	DeleteAllRules() error
}

// PacketEmitter sends constructed packets out of one attached switch.
type PacketEmitter interface {
	// EmitReply serializes the spoofed ARP reply and sends it out of the
	// intent's egress port
	EmitReply(reply domain.ReplyIntent) error
}

// SwitchLink is the handle for one attached switch connection. It is handed
// to the core on link establishment and stays valid until the next
// establishment replaces it.
type SwitchLink interface {
	RuleInstaller
	PacketEmitter

	// ID identifies the switch for logging (datapath id once known)
	ID() string
}

// ========================================
// PRIMARY PORTS (Driving / inbound)
// ========================================

// EventHandler is implemented by the balancing core and invoked by the
// transport adapter. Implementations must tolerate concurrent calls; the
// core serializes internally.
type EventHandler interface {
	// HandlePacketObserved processes one ARP request the switch had no
	// matching rule for
	HandlePacketObserved(ev domain.ARPRequestEvent)

	// HandleLinkEstablished attaches a newly connected switch and resets
	// its forwarding state
	HandleLinkEstablished(link SwitchLink)
}
