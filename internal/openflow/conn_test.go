package openflow

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/ports"
	"github.com/sdnlb/vip-switch/pkg/logger"
)

// recordingHandler stands in for the core: it records what the transport
// delivers and clears the flow table on attachment, like the controller.
type recordingHandler struct {
	mu     sync.Mutex
	links  []ports.SwitchLink
	events []domain.ARPRequestEvent
}

func (h *recordingHandler) HandlePacketObserved(ev domain.ARPRequestEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingHandler) HandleLinkEstablished(link ports.SwitchLink) {
	h.mu.Lock()
	h.links = append(h.links, link)
	h.mu.Unlock()
	link.DeleteAllRules()
}

func (h *recordingHandler) linkCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.links)
}

func (h *recordingHandler) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// readMessage reads one OpenFlow message from the fake switch side
func readMessage(t *testing.T, conn net.Conn) (header, []byte) {
	t.Helper()
	var hdrBuf [headerLen]byte
	_, err := io.ReadFull(conn, hdrBuf[:])
	require.NoError(t, err)
	hdr, err := decodeHeader(hdrBuf[:])
	require.NoError(t, err)
	body := make([]byte, int(hdr.Length)-headerLen)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)
	return hdr, body
}

// featuresReply builds a minimal FEATURES_REPLY with the given datapath id
func featuresReply(xid uint32, dpid uint64) []byte {
	b := make([]byte, headerLen+24)
	putHeader(b, typeFeaturesReply, len(b), xid)
	binary.BigEndian.PutUint64(b[headerLen:headerLen+8], dpid)
	return b
}

// packetInMessage wraps a frame in a PACKET_IN
func packetInMessage(inPort uint16, frame []byte) []byte {
	b := make([]byte, headerLen+10+len(frame))
	putHeader(b, typePacketIn, len(b), 99)
	body := b[headerLen:]
	binary.BigEndian.PutUint32(body[0:4], bufferNone)
	binary.BigEndian.PutUint16(body[4:6], uint16(len(frame)))
	binary.BigEndian.PutUint16(body[6:8], inPort)
	copy(body[10:], frame)
	return b
}

func TestSwitchHandshakeAndPacketIn(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	handler := &recordingHandler{}
	listener := NewListener("127.0.0.1:0", 0, handler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	require.Eventually(t, func() bool { return listener.Addr() != nil },
		2*time.Second, 10*time.Millisecond, "listener never bound")

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	// Controller greets with HELLO then FEATURES_REQUEST.
	hdr, _ := readMessage(t, conn)
	assert.Equal(t, uint8(typeHello), hdr.Type)
	hdr, _ = readMessage(t, conn)
	assert.Equal(t, uint8(typeFeaturesRequest), hdr.Type)

	_, err = conn.Write(encodeHello(1))
	require.NoError(t, err)
	_, err = conn.Write(featuresReply(hdr.XID, 0x0000000000000042))
	require.NoError(t, err)

	// Attachment reaches the handler, which clears the flow table.
	require.Eventually(t, func() bool { return handler.linkCount() == 1 },
		2*time.Second, 10*time.Millisecond, "link never established")
	assert.Equal(t, "0000000000000042", handler.links[0].ID())

	hdr, body := readMessage(t, conn)
	assert.Equal(t, uint8(typeFlowMod), hdr.Type)
	assert.Equal(t, uint16(cmdDelete), binary.BigEndian.Uint16(body[matchLen+8:matchLen+10]))

	// An ARP request in a PACKET_IN becomes a core event.
	frame := buildARPFrame(t, layers.ARPRequest,
		"00:00:00:00:00:01", "10.0.0.1",
		"ff:ff:ff:ff:ff:ff", "10.0.0.10")
	_, err = conn.Write(packetInMessage(3, frame))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return handler.eventCount() == 1 },
		2*time.Second, 10*time.Millisecond, "packet-in never delivered")
	ev := handler.events[0]
	assert.Equal(t, "10.0.0.1", ev.SrcIP.To4().String())
	assert.Equal(t, "10.0.0.10", ev.TargetIP.To4().String())
	assert.Equal(t, uint16(3), ev.InPort)

	// Non-request ARP traffic is filtered at this layer.
	replyFrame := buildARPFrame(t, layers.ARPReply,
		"00:00:00:00:00:05", "10.0.0.5",
		"00:00:00:00:00:01", "10.0.0.1")
	_, err = conn.Write(packetInMessage(5, replyFrame))
	require.NoError(t, err)

	// An installed rule arrives as a FLOW_MOD add.
	require.NoError(t, handler.links[0].InstallRule(domain.RuleIntent{
		Match: domain.Match{
			EtherType: domain.EtherTypeIPv4,
			IPProto:   domain.IPProtoICMP,
			InPort:    3,
			DstIP:     ip4(t, "10.0.0.10"),
		},
		Actions: []domain.Action{
			domain.RewriteDestination(ip4(t, "10.0.0.5")),
			domain.OutputTo(5),
		},
	}))
	hdr, body = readMessage(t, conn)
	assert.Equal(t, uint8(typeFlowMod), hdr.Type)
	assert.Equal(t, uint16(cmdAdd), binary.BigEndian.Uint16(body[matchLen+8:matchLen+10]))

	// A reply intent arrives as a PACKET_OUT carrying a parseable ARP reply.
	require.NoError(t, handler.links[0].EmitReply(domain.ReplyIntent{
		SrcMAC:  mac(t, "00:00:00:00:00:05"),
		DstMAC:  mac(t, "00:00:00:00:00:01"),
		SrcIP:   ip4(t, "10.0.0.10"),
		DstIP:   ip4(t, "10.0.0.1"),
		OutPort: 3,
	}))
	hdr, body = readMessage(t, conn)
	assert.Equal(t, uint8(typePacketOut), hdr.Type)
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(body[12:14]), "output action names the egress port")

	assert.Equal(t, 1, handler.eventCount(), "the ARP reply packet-in must not reach the core")
}

func TestEchoRequestIsAnswered(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	handler := &recordingHandler{}
	listener := NewListener("127.0.0.1:0", 0, handler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	require.Eventually(t, func() bool { return listener.Addr() != nil },
		2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	readMessage(t, conn) // hello
	readMessage(t, conn) // features request

	payload := []byte("keepalive")
	msg := make([]byte, headerLen+len(payload))
	putHeader(msg, typeEchoRequest, len(msg), 77)
	copy(msg[headerLen:], payload)
	_, err = conn.Write(msg)
	require.NoError(t, err)

	hdr, body := readMessage(t, conn)
	assert.Equal(t, uint8(typeEchoReply), hdr.Type)
	assert.Equal(t, uint32(77), hdr.XID)
	assert.Equal(t, payload, body)
}
