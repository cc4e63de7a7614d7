package openflow

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/errors"
	"github.com/sdnlb/vip-switch/internal/ports"
	"github.com/sdnlb/vip-switch/pkg/logger"
)

// Listener accepts switch connections and drives the core's event handler.
// One controller instance serves one switch at a time (the core keeps only
// the most recently established link), but stale connections are still
// drained so a reconnecting switch does not wedge the listener.
type Listener struct {
	addr         string
	echoInterval time.Duration
	handler      ports.EventHandler
	logger       *logger.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewListener creates a listener for the given address
func NewListener(addr string, echoInterval time.Duration, handler ports.EventHandler, log *logger.Logger) *Listener {
	return &Listener{
		addr:         addr,
		echoInterval: echoInterval,
		handler:      handler,
		logger:       log,
	}
}

// Addr returns the bound listen address, or nil before Run has started
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Run listens for switch connections until the context is cancelled
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternalError, "openflow", "Failed to listen for switch connections")
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.logger.WithField("listen", l.addr).Info("Listening for switch connections")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			l.logger.WithError(err).Warn("Accept failed")
			continue
		}

		sc := newSwitchConn(conn, l.echoInterval, l.handler, l.logger.SwitchLogger(conn.RemoteAddr().String()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc.serve(ctx)
		}()
	}
}

// switchConn is one attached switch connection. It implements
// ports.SwitchLink and owns all reads and writes on its socket.
type switchConn struct {
	conn         net.Conn
	echoInterval time.Duration
	handler      ports.EventHandler
	logger       *logger.Logger

	writeMu sync.Mutex
	xid     uint32
	dpid    atomic.Uint64
}

var _ ports.SwitchLink = (*switchConn)(nil)

func newSwitchConn(conn net.Conn, echoInterval time.Duration, handler ports.EventHandler, log *logger.Logger) *switchConn {
	return &switchConn{
		conn:         conn,
		echoInterval: echoInterval,
		handler:      handler,
		logger:       log,
	}
}

// ID identifies the switch: the datapath id once the handshake completed,
// the remote address before that.
func (s *switchConn) ID() string {
	if dpid := s.dpid.Load(); dpid != 0 {
		return fmt.Sprintf("%016x", dpid)
	}
	return s.conn.RemoteAddr().String()
}

// serve runs the handshake and the read loop until the connection dies
func (s *switchConn) serve(ctx context.Context) {
	defer s.conn.Close()

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	if err := s.write(encodeHello(s.nextXID())); err != nil {
		s.logger.WithError(err).Warn("Failed to send hello")
		return
	}
	if err := s.write(encodeFeaturesRequest(s.nextXID())); err != nil {
		s.logger.WithError(err).Warn("Failed to send features request")
		return
	}

	if s.echoInterval > 0 {
		stop := s.startKeepalive(ctx)
		defer stop()
	}

	for {
		hdr, body, err := s.read()
		if err != nil {
			if ctx.Err() == nil && err != io.EOF {
				s.logger.WithError(err).Warn("Switch connection closed")
			}
			return
		}
		s.dispatch(hdr, body)
	}
}

// dispatch routes one inbound message
func (s *switchConn) dispatch(hdr header, body []byte) {
	switch hdr.Type {
	case typeHello:
		// Version negotiation is trivial: we only speak 1.0.
	case typeEchoRequest:
		if err := s.write(encodeEchoReply(hdr.XID, body)); err != nil {
			s.logger.WithError(err).Warn("Failed to answer echo request")
		}
	case typeEchoReply:
		// Keepalive acknowledged.
	case typeFeaturesReply:
		dpid, err := decodeDatapathID(body)
		if err != nil {
			s.logger.WithError(err).Warn("Malformed features reply")
			return
		}
		s.dpid.Store(dpid)
		s.handler.HandleLinkEstablished(s)
	case typePacketIn:
		pi, err := decodePacketIn(body)
		if err != nil {
			s.logger.WithError(err).Warn("Malformed packet-in")
			return
		}
		if ev, ok := parseARPRequest(pi.InPort, pi.Data); ok {
			s.handler.HandlePacketObserved(ev)
		}
	case typeError:
		s.logger.WithField("body_len", len(body)).Warn("Switch reported an OpenFlow error")
	default:
		s.logger.WithField("type", hdr.Type).Debug("Ignoring unsupported message type")
	}
}

// startKeepalive sends periodic echo requests until stopped
func (s *switchConn) startKeepalive(ctx context.Context) func() {
	ticker := time.NewTicker(s.echoInterval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := s.write(encodeEchoRequest(s.nextXID())); err != nil {
					s.logger.WithError(err).Debug("Keepalive write failed")
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

// InstallRule encodes and sends a FLOW_MOD adding the rule
func (s *switchConn) InstallRule(rule domain.RuleIntent) error {
	msg, err := encodeFlowModAdd(rule, s.nextXID())
	if err != nil {
		return err
	}
	return s.write(msg)
}

// DeleteAllRules encodes and sends a FLOW_MOD clearing the flow table
func (s *switchConn) DeleteAllRules() error {
	return s.write(encodeFlowModDeleteAll(s.nextXID()))
}

// EmitReply serializes the spoofed ARP reply and sends it as PACKET_OUT
func (s *switchConn) EmitReply(reply domain.ReplyIntent) error {
	frame, err := serializeReply(reply)
	if err != nil {
		return err
	}
	return s.write(encodePacketOut(reply.OutPort, frame, s.nextXID()))
}

// nextXID returns a fresh transaction id
func (s *switchConn) nextXID() uint32 {
	return atomic.AddUint32(&s.xid, 1)
}

// write sends one message; writes are serialized so intents never interleave
func (s *switchConn) write(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write(msg)
	return err
}

// read blocks for one full message
func (s *switchConn) read() (header, []byte, error) {
	var hdrBuf [headerLen]byte
	if _, err := io.ReadFull(s.conn, hdrBuf[:]); err != nil {
		return header{}, nil, err
	}

	hdr, err := decodeHeader(hdrBuf[:])
	if err != nil {
		return header{}, nil, err
	}

	body := make([]byte, int(hdr.Length)-headerLen)
	if _, err := io.ReadFull(s.conn, body); err != nil {
		return header{}, nil, err
	}
	return hdr, body, nil
}
