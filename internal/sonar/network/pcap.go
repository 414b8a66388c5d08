package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayStats summarises one ReplayPCAP run.
type ReplayStats struct {
	Packets  int // packets read from the file
	Segments int // TCP segments passed to the sink
	Bytes    int
}

// ReplayPCAP reads a capture file and calls sink with the payload of every
// TCP segment sent from port, in capture order. The payloads are the raw
// stream chunks the head sent, so the sink normally feeds a Framer.
// Retransmissions are not deduplicated.
func ReplayPCAP(ctx context.Context, path string, port int, sink func(ts time.Time, payload []byte)) (ReplayStats, error) {
	var stats ReplayStats
	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return stats, fmt.Errorf("failed to read PCAP header %s: %w", path, err)
	}
	started := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			diagf("pcap replay stopping after %d packets: %v", stats.Packets, err)
			return stats, err
		}
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || int(tcp.SrcPort) != port || len(tcp.Payload) == 0 {
			continue
		}
		stats.Segments++
		stats.Bytes += len(tcp.Payload)
		sink(ci.Timestamp, tcp.Payload)
	}
	diagf("pcap replay complete: %d packets, %d segments, %d bytes in %v",
		stats.Packets, stats.Segments, stats.Bytes, time.Since(started))
	return stats, nil
}
