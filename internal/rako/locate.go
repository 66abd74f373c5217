package rako

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// Bridge location constants.
const (
	// mdnsService is the service type Rako bridges announce over mDNS.
	mdnsService = "_rako._tcp"

	// mdnsEntryBuffer sizes the channel collecting mDNS answers.
	mdnsEntryBuffer = 10

	// broadcastProbe is the discovery datagram older bridges answer
	// with their name and MAC.
	broadcastProbe = "D"
)

// LocatedBridge describes a bridge found on the local network.
type LocatedBridge struct {
	// Host is the bridge's IP address.
	Host string

	// MAC is the bridge's MAC address, when the announcement carried one.
	MAC string

	// Name is the bridge's advertised name.
	Name string
}

// Locate finds a Rako bridge on the local network. It queries mDNS
// first and falls back to a UDP broadcast probe for bridges that
// predate mDNS support. The first bridge to answer wins.
func Locate(ctx context.Context, timeout time.Duration) (LocatedBridge, error) {
	if bridge, err := locateMDNS(ctx, timeout); err == nil {
		return bridge, nil
	}
	return locateBroadcast(ctx, timeout)
}

// locateMDNS runs an mDNS query for the Rako service.
func locateMDNS(ctx context.Context, timeout time.Duration) (LocatedBridge, error) {
	entries := make(chan *mdns.ServiceEntry, mdnsEntryBuffer)
	found := make(chan LocatedBridge, 1)

	go func() {
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			bridge := LocatedBridge{
				Host: entry.AddrV4.String(),
				Name: strings.TrimSuffix(entry.Host, "."),
			}
			for _, txt := range entry.InfoFields {
				if mac, ok := strings.CutPrefix(txt, "mac="); ok {
					bridge.MAC = mac
				}
				if name, ok := strings.CutPrefix(txt, "name="); ok {
					bridge.Name = name
				}
			}
			select {
			case found <- bridge:
			default:
			}
		}
	}()

	params := mdns.DefaultParams(mdnsService)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	if err != nil {
		return LocatedBridge{}, fmt.Errorf("rako: mDNS query: %w", err)
	}

	select {
	case bridge := <-found:
		return bridge, nil
	case <-ctx.Done():
		return LocatedBridge{}, ctx.Err()
	default:
		return LocatedBridge{}, ErrNotFound
	}
}

// locateBroadcast probes the LAN broadcast address on the bridge's UDP
// port. Bridges answer with "name,MAC".
func locateBroadcast(ctx context.Context, timeout time.Duration) (LocatedBridge, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return LocatedBridge{}, fmt.Errorf("rako: broadcast listen: %w", err)
	}
	defer conn.Close() //nolint:errcheck // Best effort cleanup

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return LocatedBridge{}, fmt.Errorf("rako: broadcast deadline: %w", err)
	}

	// Context cancellation unblocks the read by expiring the deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	dest := &net.UDPAddr{IP: net.IPv4bcast, Port: DefaultUDPPort}
	if _, err := conn.WriteTo([]byte(broadcastProbe), dest); err != nil {
		return LocatedBridge{}, fmt.Errorf("rako: broadcast probe: %w", err)
	}

	buf := make([]byte, maxDatagramSize)
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		if ctx.Err() != nil {
			return LocatedBridge{}, fmt.Errorf("rako: broadcast locate: %w", ctx.Err())
		}
		return LocatedBridge{}, fmt.Errorf("%w: no broadcast reply: %v", ErrNotFound, err)
	}

	bridge := LocatedBridge{}
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		bridge.Host = udpAddr.IP.String()
	}
	bridge.Name, bridge.MAC = parseBroadcastReply(string(buf[:n]))
	return bridge, nil
}

// parseBroadcastReply decodes a "name,MAC" announcement. Replies
// without a comma carry only the bridge name.
func parseBroadcastReply(reply string) (name, mac string) {
	reply = strings.TrimSpace(reply)
	if n, m, ok := strings.Cut(reply, ","); ok {
		return n, strings.ToLower(m)
	}
	return reply, ""
}
