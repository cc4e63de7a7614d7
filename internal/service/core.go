package service

import (
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sdnlb/vip-switch/internal/config"
	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/ports"
	"github.com/sdnlb/vip-switch/pkg/logger"
)

// Controller is the decision core of the virtual-address balancer. It owns
// the server pool, the client registry and the currently attached switch
// link, and is the only component that mutates any of them.
//
// Both entrypoints are serialized by one mutex: an event is processed to
// completion before the next is considered, which keeps registration and
// cursor advancement atomic. All work is synchronous transformation of an
// event into zero or more intents, so nothing here blocks.
type Controller struct {
	virtualIP  net.IP
	pool       *ServerPool
	registry   *ClientRegistry
	classifier *Classifier
	builder    *IntentBuilder
	limiter    *rate.Limiter
	logger     *logger.Logger

	mu   sync.Mutex
	link ports.SwitchLink

	counters counters
}

// counters tracks event outcomes for the stats surface
type counters struct {
	clientToVirtual    uint64
	backendToClient    uint64
	irrelevant         uint64
	droppedNoLink      uint64
	droppedRateLimited uint64
	rulesInstalled     uint64
	repliesEmitted     uint64
	intentErrors       uint64
}

var _ ports.EventHandler = (*Controller)(nil)

// NewController creates the balancing core over the given pool and registry
func NewController(
	virtualIP net.IP,
	pool *ServerPool,
	registry *ClientRegistry,
	portMap domain.PortMap,
	rateLimit config.RateLimitConfig,
	log *logger.Logger,
) *Controller {
	c := &Controller{
		virtualIP:  virtualIP.To4(),
		pool:       pool,
		registry:   registry,
		classifier: NewClassifier(virtualIP, registry),
		builder:    NewIntentBuilder(virtualIP, portMap),
		logger:     log.BalancerLogger(),
	}

	if rateLimit.Enabled {
		c.limiter = rate.NewLimiter(rate.Limit(rateLimit.EventsPerSecond), rateLimit.BurstSize)
		c.logger.Infof("Packet-in rate limiting enabled: %.1f events/s, burst %d",
			rateLimit.EventsPerSecond, rateLimit.BurstSize)
	}

	return c
}

// HandleLinkEstablished attaches a newly connected switch and clears its
// flow table, so the core starts from a known-empty rule set. Registry and
// cursor state survive re-establishment on purpose.
func (c *Controller) HandleLinkEstablished(link ports.SwitchLink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.link = link

	if err := link.DeleteAllRules(); err != nil {
		c.logger.WithError(err).WithField("switch", link.ID()).
			Error("Failed to clear flow table on link establishment")
		return
	}

	c.logger.WithField("switch", link.ID()).
		WithField("known_clients", c.registry.Len()).
		Info("Switch attached, flow table cleared")
}

// HandlePacketObserved processes one observed ARP request to completion:
// classification, registration when needed, and intent emission.
func (c *Controller) HandlePacketObserved(ev domain.ARPRequestEvent) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.mu.Lock()
		c.counters.droppedRateLimited++
		c.mu.Unlock()
		c.logger.WithField("src_ip", ev.SrcIP.String()).Debug("Packet-in dropped by rate limiter")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.classifier.Classify(ev) {
	case domain.ClassClientToVirtual:
		c.handleClientToVirtual(ev)
	case domain.ClassBackendToClient:
		c.handleBackendToClient(ev)
	default:
		c.counters.irrelevant++
		c.logger.WithField("target_ip", ev.TargetIP.String()).
			Debug("Ignoring ARP request for unrelated address")
	}
}

// handleClientToVirtual serves a client resolving the virtual address. The
// forwarding rule is installed only when the client is new; the spoofed
// reply is sent every time.
func (c *Controller) handleClientToVirtual(ev domain.ARPRequestEvent) {
	c.counters.clientToVirtual++

	if c.link == nil {
		c.counters.droppedNoLink++
		c.logger.WithField("src_ip", ev.SrcIP.String()).
			Warn("No switch link attached, discarding client request")
		return
	}

	rec, created := c.registry.RegisterIfAbsent(ev.SrcIP, ev.SrcMAC)
	assigned := c.pool.Backend(rec.BackendIndex)
	rule, reply := c.builder.ClientToVirtual(ev, assigned)

	if created {
		c.logger.WithFields(map[string]interface{}{
			"client_ip":     rec.IP.String(),
			"backend_index": rec.BackendIndex,
			"backend_ip":    assigned.IP.String(),
			"position":      rec.Position,
		}).Info("Registered new client")

		c.installRule(rule)
	}

	c.emitReply(reply)
}

// handleBackendToClient serves a backend resolving a registered client
func (c *Controller) handleBackendToClient(ev domain.ARPRequestEvent) {
	c.counters.backendToClient++

	if c.link == nil {
		c.counters.droppedNoLink++
		c.logger.WithField("src_ip", ev.SrcIP.String()).
			Warn("No switch link attached, discarding backend request")
		return
	}

	rec, ok := c.registry.LookupByAddress(ev.TargetIP)
	if !ok {
		// The classifier only selects this case for registered targets.
		c.counters.irrelevant++
		return
	}

	rule, reply := c.builder.BackendToClient(ev, rec)
	c.installRule(rule)
	c.emitReply(reply)
}

// installRule hands a rule intent to the attached link. Callers hold c.mu.
func (c *Controller) installRule(rule domain.RuleIntent) {
	if err := c.link.InstallRule(rule); err != nil {
		c.counters.intentErrors++
		c.logger.WithError(err).WithField("rule", rule.String()).
			Error("Failed to install forwarding rule")
		return
	}
	c.counters.rulesInstalled++
}

// emitReply hands a reply intent to the attached link. Callers hold c.mu.
func (c *Controller) emitReply(reply domain.ReplyIntent) {
	if err := c.link.EmitReply(reply); err != nil {
		c.counters.intentErrors++
		c.logger.WithError(err).WithField("dst_ip", reply.DstIP.String()).
			Error("Failed to emit ARP reply")
		return
	}
	c.counters.repliesEmitted++
}

// VirtualAddress returns the configured virtual service address
func (c *Controller) VirtualAddress() net.IP {
	return c.virtualIP
}

// Backends returns the ordered backend pool
func (c *Controller) Backends() []domain.Backend {
	return c.pool.Snapshot()
}

// Clients returns the registered clients in insertion order
func (c *Controller) Clients() []domain.ClientRecord {
	return c.registry.Snapshot()
}

// LinkAttached reports whether a switch link is currently attached
func (c *Controller) LinkAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// Stats returns controller statistics
func (c *Controller) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]interface{}{
		"virtual_ip":           c.virtualIP.String(),
		"backends":             c.pool.Len(),
		"clients":              c.registry.Len(),
		"cursor":               c.pool.Cursor(),
		"link_attached":        c.link != nil,
		"client_to_virtual":    c.counters.clientToVirtual,
		"backend_to_client":    c.counters.backendToClient,
		"irrelevant":           c.counters.irrelevant,
		"dropped_no_link":      c.counters.droppedNoLink,
		"dropped_rate_limited": c.counters.droppedRateLimited,
		"rules_installed":      c.counters.rulesInstalled,
		"replies_emitted":      c.counters.repliesEmitted,
		"intent_errors":        c.counters.intentErrors,
	}
}
