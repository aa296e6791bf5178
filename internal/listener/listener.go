// Package listener runs the single UDP receive loop bound to the master
// server port and dispatches each inbound datagram to a heartbeat or
// getservers handler, mirroring the teacher transport's one-receive-loop,
// many-handler shape.
package listener

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wahke/ET-Masterserver/internal/prober"
	"github.com/wahke/ET-Masterserver/internal/registry"
	"github.com/wahke/ET-Masterserver/internal/wire"
)

const (
	maxDatagramSize = 1024
	probeCooldown   = 15 * time.Second
	liveWindow      = 6 * time.Minute
)

// Listener owns the bound UDP socket and the shared registry state every
// handler mutates.
type Listener struct {
	conn   net.PacketConn
	reg    *registry.Registry
	aux    *registry.Aux
	prober *prober.Prober
	log    logrus.FieldLogger
}

// Bind opens the UDP socket at addr (host:port). Failure to bind is the
// one fatal condition in this system and is returned to the caller
// unwrapped of any retry logic.
func Bind(addr string, reg *registry.Registry, aux *registry.Aux, p *prober.Prober, log logrus.FieldLogger) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp listener on %s: %w", addr, err)
	}
	return &Listener{conn: conn, reg: reg, aux: aux, prober: p, log: log}, nil
}

// Close releases the bound socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads datagrams until ctx is canceled or the socket errors. Each
// datagram is classified and dispatched to its handler in its own
// goroutine so the receive loop never blocks on handler work.
func (l *Listener) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("udp listener read: %w", err)
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			l.log.WithField("remote_addr", addr).Warn("listener: non-UDP source address")
			continue
		}
		ep := wire.Endpoint{IP: udpAddr.IP.String(), Port: uint16(udpAddr.Port)}

		_, kind := wire.ClassifyInbound(payload)
		switch kind {
		case "heartbeat":
			go l.handleHeartbeat(ctx, ep)
		case "getservers":
			go l.handleGetServers(ctx, ep)
		default:
			l.log.WithField("remote_addr", ep).Warn("listener: unrecognized datagram prefix")
		}
	}
}

// handleHeartbeat implements spec.md §4.3's four-step heartbeat flow: a
// probe-cooldown de-dup check, a getinfo probe back to the sender, an
// atomic update of both auxiliary timestamps, and a registry upsert.
func (l *Listener) handleHeartbeat(ctx context.Context, ep wire.Endpoint) {
	if l.aux.ProbedWithin(ep, probeCooldown) {
		return
	}

	info, ok := l.prober.Probe(ctx, ep)
	if !ok {
		l.log.WithField("endpoint", ep).Warn("heartbeat: probe yielded no info")
		return
	}

	l.aux.MarkHeartbeat(ep)

	if err := l.reg.UpsertInfo(ep, info); err != nil {
		l.log.WithError(err).WithField("endpoint", ep).Error("heartbeat: registry upsert failed")
	}
}

// handleGetServers implements spec.md §4.3's getservers reply: read live
// endpoints, encode, and reply. No reply is sent for an empty result set.
func (l *Listener) handleGetServers(_ context.Context, ep wire.Endpoint) {
	endpoints, err := l.reg.GetLiveEndpoints(liveWindow)
	if err != nil {
		l.log.WithError(err).Error("getservers: registry read failed")
		return
	}
	if len(endpoints) == 0 {
		l.log.WithField("endpoint", ep).Info("getservers: no live servers to report")
		return
	}

	reply := wire.EncodeGetServersResponse(endpoints)
	dst := &net.UDPAddr{IP: net.ParseIP(ep.IP), Port: int(ep.Port)}
	if _, err := l.conn.WriteTo(reply, dst); err != nil {
		l.log.WithError(err).WithField("endpoint", ep).Warn("getservers: send failed")
	}
}
