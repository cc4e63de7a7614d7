// Package openflow is the switch transport adapter: it speaks OpenFlow 1.0
// to attached switches and translates between wire messages and the core's
// events and intents. Nothing here makes routing decisions.
package openflow

import (
	"encoding/binary"
	"fmt"

	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/errors"
)

// OpenFlow 1.0 wire constants. Only the subset this controller speaks.
const (
	ofpVersion = 0x01

	headerLen = 8
	matchLen  = 40

	// Message types
	typeHello           = 0
	typeError           = 1
	typeEchoRequest     = 2
	typeEchoReply       = 3
	typeFeaturesRequest = 5
	typeFeaturesReply   = 6
	typePacketIn        = 10
	typePacketOut       = 13
	typeFlowMod         = 14

	// Flow mod commands
	cmdAdd    = 0
	cmdDelete = 3

	// Action types
	actionTypeOutput   = 0
	actionTypeSetNWSrc = 6
	actionTypeSetNWDst = 7
	actionLen          = 8

	// Special port numbers
	portNone = 0xffff

	// Sentinel for "no buffered packet"
	bufferNone = 0xffffffff

	defaultPriority = 0x8000
)

// Match wildcard bits (ofp_flow_wildcards)
const (
	wildcardInPort   = 1 << 0
	wildcardDLVLAN   = 1 << 1
	wildcardDLSrc    = 1 << 2
	wildcardDLDst    = 1 << 3
	wildcardDLType   = 1 << 4
	wildcardNWProto  = 1 << 5
	wildcardTPSrc    = 1 << 6
	wildcardTPDst    = 1 << 7
	wildcardNWSrcSh  = 8
	wildcardNWDstSh  = 14
	wildcardNWMask   = 0x3f
	wildcardVLANPCP  = 1 << 20
	wildcardNWTOS    = 1 << 21
	wildcardAll      = 1<<22 - 1
)

// header is the fixed OpenFlow message header
type header struct {
	Version uint8
	Type    uint8
	Length  uint16
	XID     uint32
}

// decodeHeader parses the 8-byte message header
func decodeHeader(b []byte) (header, error) {
	if len(b) < headerLen {
		return header{}, errors.NewCodecError("header", fmt.Errorf("short header: %d bytes", len(b)))
	}
	h := header{
		Version: b[0],
		Type:    b[1],
		Length:  binary.BigEndian.Uint16(b[2:4]),
		XID:     binary.BigEndian.Uint32(b[4:8]),
	}
	if h.Length < headerLen {
		return header{}, errors.NewCodecError("header", fmt.Errorf("bad length %d", h.Length))
	}
	return h, nil
}

// putHeader writes a message header into the first 8 bytes of b
func putHeader(b []byte, msgType uint8, length int, xid uint32) {
	b[0] = ofpVersion
	b[1] = msgType
	binary.BigEndian.PutUint16(b[2:4], uint16(length))
	binary.BigEndian.PutUint32(b[4:8], xid)
}

// encodeHello builds a HELLO message
func encodeHello(xid uint32) []byte {
	b := make([]byte, headerLen)
	putHeader(b, typeHello, headerLen, xid)
	return b
}

// encodeEchoReply builds an ECHO_REPLY mirroring the request payload
func encodeEchoReply(xid uint32, payload []byte) []byte {
	b := make([]byte, headerLen+len(payload))
	putHeader(b, typeEchoReply, len(b), xid)
	copy(b[headerLen:], payload)
	return b
}

// encodeEchoRequest builds an ECHO_REQUEST keepalive
func encodeEchoRequest(xid uint32) []byte {
	b := make([]byte, headerLen)
	putHeader(b, typeEchoRequest, headerLen, xid)
	return b
}

// encodeFeaturesRequest builds a FEATURES_REQUEST
func encodeFeaturesRequest(xid uint32) []byte {
	b := make([]byte, headerLen)
	putHeader(b, typeFeaturesRequest, headerLen, xid)
	return b
}

// decodeDatapathID extracts the datapath id from a FEATURES_REPLY body
func decodeDatapathID(body []byte) (uint64, error) {
	if len(body) < 8 {
		return 0, errors.NewCodecError("features_reply", fmt.Errorf("short body: %d bytes", len(body)))
	}
	return binary.BigEndian.Uint64(body[:8]), nil
}

// encodeMatch serializes a rule match into the 40-byte ofp_match layout,
// wildcarding every field the intent leaves unset.
func encodeMatch(b []byte, m domain.Match) {
	wildcards := uint32(wildcardAll)

	if m.InPort != 0 {
		wildcards &^= wildcardInPort
		binary.BigEndian.PutUint16(b[4:6], m.InPort)
	}
	// b[6:12] dl_src, b[12:18] dl_dst, b[18:20] dl_vlan: always wildcarded
	if m.EtherType != 0 {
		wildcards &^= wildcardDLType
		binary.BigEndian.PutUint16(b[22:24], m.EtherType)
	}
	if m.IPProto != 0 {
		wildcards &^= wildcardNWProto
		b[25] = m.IPProto
	}
	if ip := m.SrcIP.To4(); ip != nil {
		wildcards &^= wildcardNWMask << wildcardNWSrcSh
		copy(b[28:32], ip)
	}
	if ip := m.DstIP.To4(); ip != nil {
		wildcards &^= wildcardNWMask << wildcardNWDstSh
		copy(b[32:36], ip)
	}

	binary.BigEndian.PutUint32(b[0:4], wildcards)
}

// encodeActions serializes the intent's ordered action list
func encodeActions(actions []domain.Action) ([]byte, error) {
	b := make([]byte, 0, len(actions)*actionLen)
	for _, a := range actions {
		buf := make([]byte, actionLen)
		binary.BigEndian.PutUint16(buf[2:4], actionLen)
		switch a.Type {
		case domain.ActionOutput:
			binary.BigEndian.PutUint16(buf[0:2], actionTypeOutput)
			binary.BigEndian.PutUint16(buf[4:6], a.Port)
			// max_len left zero: only meaningful for output-to-controller
		case domain.ActionRewriteSource, domain.ActionRewriteDestination:
			actionType := uint16(actionTypeSetNWSrc)
			if a.Type == domain.ActionRewriteDestination {
				actionType = actionTypeSetNWDst
			}
			ip := a.IP.To4()
			if ip == nil {
				return nil, errors.NewCodecError("action", fmt.Errorf("%s needs an IPv4 address", a.Type))
			}
			binary.BigEndian.PutUint16(buf[0:2], actionType)
			copy(buf[4:8], ip)
		default:
			return nil, errors.NewCodecError("action", fmt.Errorf("unsupported action type %d", a.Type))
		}
		b = append(b, buf...)
	}
	return b, nil
}

// encodeFlowModAdd builds a FLOW_MOD adding the given rule
func encodeFlowModAdd(rule domain.RuleIntent, xid uint32) ([]byte, error) {
	actions, err := encodeActions(rule.Actions)
	if err != nil {
		return nil, err
	}

	length := headerLen + matchLen + 24 + len(actions)
	b := make([]byte, length)
	putHeader(b, typeFlowMod, length, xid)
	encodeMatch(b[headerLen:headerLen+matchLen], rule.Match)

	body := b[headerLen+matchLen:]
	// cookie body[0:8] zero
	binary.BigEndian.PutUint16(body[8:10], cmdAdd)
	// idle_timeout body[10:12], hard_timeout body[12:14]: permanent
	binary.BigEndian.PutUint16(body[14:16], defaultPriority)
	binary.BigEndian.PutUint32(body[16:20], bufferNone)
	binary.BigEndian.PutUint16(body[20:22], portNone)
	// flags body[22:24] zero
	copy(body[24:], actions)

	return b, nil
}

// encodeFlowModDeleteAll builds a FLOW_MOD deleting every rule in the table
func encodeFlowModDeleteAll(xid uint32) []byte {
	length := headerLen + matchLen + 24
	b := make([]byte, length)
	putHeader(b, typeFlowMod, length, xid)
	encodeMatch(b[headerLen:headerLen+matchLen], domain.Match{})

	body := b[headerLen+matchLen:]
	binary.BigEndian.PutUint16(body[8:10], cmdDelete)
	binary.BigEndian.PutUint32(body[16:20], bufferNone)
	binary.BigEndian.PutUint16(body[20:22], portNone)

	return b
}

// encodePacketOut builds a PACKET_OUT sending frame out of egressPort
func encodePacketOut(egressPort uint16, frame []byte, xid uint32) []byte {
	length := headerLen + 8 + actionLen + len(frame)
	b := make([]byte, length)
	putHeader(b, typePacketOut, length, xid)

	body := b[headerLen:]
	binary.BigEndian.PutUint32(body[0:4], bufferNone)
	binary.BigEndian.PutUint16(body[4:6], portNone)
	binary.BigEndian.PutUint16(body[6:8], actionLen)

	action := body[8:16]
	binary.BigEndian.PutUint16(action[0:2], actionTypeOutput)
	binary.BigEndian.PutUint16(action[2:4], actionLen)
	binary.BigEndian.PutUint16(action[4:6], egressPort)

	copy(body[16:], frame)
	return b
}

// packetIn is a decoded PACKET_IN message
type packetIn struct {
	BufferID uint32
	TotalLen uint16
	InPort   uint16
	Reason   uint8
	Data     []byte
}

// decodePacketIn parses a PACKET_IN body
func decodePacketIn(body []byte) (packetIn, error) {
	if len(body) < 10 {
		return packetIn{}, errors.NewCodecError("packet_in", fmt.Errorf("short body: %d bytes", len(body)))
	}
	return packetIn{
		BufferID: binary.BigEndian.Uint32(body[0:4]),
		TotalLen: binary.BigEndian.Uint16(body[4:6]),
		InPort:   binary.BigEndian.Uint16(body[6:8]),
		Reason:   body[8],
		Data:     body[10:],
	}, nil
}
