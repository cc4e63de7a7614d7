package openflow

import (
	stderrors "errors"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/errors"
)

// errBadReplyFields reports a reply intent with incomplete addressing
var errBadReplyFields = stderrors.New("reply intent has incomplete addressing")

// parseARPRequest decodes a PACKET_IN payload and, when it carries an ARP
// request, turns it into a core event. The bool reports whether the frame
// was an ARP request at all; everything else is filtered here so the core
// only ever sees request opcodes.
func parseARPRequest(inPort uint16, data []byte) (domain.ARPRequestEvent, bool) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if ethLayer == nil || arpLayer == nil {
		return domain.ARPRequestEvent{}, false
	}

	arp := arpLayer.(*layers.ARP)
	eth := ethLayer.(*layers.Ethernet)
	if arp.Operation != layers.ARPRequest {
		return domain.ARPRequestEvent{}, false
	}

	ev := domain.ARPRequestEvent{
		SrcIP:    append([]byte(nil), arp.SourceProtAddress...),
		SrcMAC:   eth.SrcMAC,
		TargetIP: append([]byte(nil), arp.DstProtAddress...),
		InPort:   inPort,
	}
	if ev.SrcIP.To4() == nil || ev.TargetIP.To4() == nil {
		return domain.ARPRequestEvent{}, false
	}
	return ev, true
}

// serializeReply builds the Ethernet frame for a spoofed ARP reply intent
func serializeReply(reply domain.ReplyIntent) ([]byte, error) {
	srcIP := reply.SrcIP.To4()
	dstIP := reply.DstIP.To4()
	if srcIP == nil || dstIP == nil || len(reply.SrcMAC) != 6 || len(reply.DstMAC) != 6 {
		return nil, errors.NewCodecError("arp_reply", errBadReplyFields)
	}

	eth := &layers.Ethernet{
		SrcMAC:       reply.SrcMAC,
		DstMAC:       reply.DstMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(reply.SrcMAC),
		SourceProtAddress: []byte(srcIP),
		DstHwAddress:      []byte(reply.DstMAC),
		DstProtAddress:    []byte(dstIP),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		return nil, errors.NewCodecError("arp_reply", err)
	}
	return buf.Bytes(), nil
}
