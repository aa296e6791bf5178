// Package prober issues getinfo probes to individual game servers and
// parses their infoResponse replies.
package prober

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wahke/ET-Masterserver/internal/registry"
	"github.com/wahke/ET-Masterserver/internal/wire"
)

// Timeout is how long a probe waits for a single reply datagram before
// giving up.
const Timeout = 2 * time.Second

// maxResponseSize bounds a single getinfo reply datagram.
const maxResponseSize = 4096

// Prober opens one UDP socket per probe, sends "getinfo 0", and waits for
// an infoResponse. It never returns an error to callers that would abort
// a batch: failures are logged and reported as a missing result, following
// the "transient network failure -> logged, swallowed" rule for this
// system.
type Prober struct {
	aux *registry.Aux
	log logrus.FieldLogger
}

// New returns a Prober whose probes mark aux's last-probe timestamp after
// every attempt, success or failure.
func New(aux *registry.Aux, log logrus.FieldLogger) *Prober {
	return &Prober{aux: aux, log: log}
}

// Probe sends a getinfo request to ep and waits up to Timeout for a reply.
// It returns ok=false on timeout, socket error, or a reply that doesn't
// contain the literal "infoResponse" substring. last_probe_time[ep] is
// updated unconditionally before Probe returns, regardless of outcome.
func (p *Prober) Probe(ctx context.Context, ep wire.Endpoint) (info wire.ProbeInfo, ok bool) {
	defer p.aux.MarkProbed(ep)

	deadline := time.Now().Add(Timeout)
	if d, has := ctx.Deadline(); has && d.Before(deadline) {
		deadline = d
	}

	conn, err := net.Dial("udp", net.JoinHostPort(ep.IP, fmt.Sprint(ep.Port)))
	if err != nil {
		p.log.WithError(err).WithField("endpoint", ep).Warn("probe: dial failed")
		return wire.ProbeInfo{}, false
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		p.log.WithError(err).WithField("endpoint", ep).Warn("probe: set deadline failed")
		return wire.ProbeInfo{}, false
	}

	if _, err := conn.Write(wire.EncodeGetInfoRequest()); err != nil {
		p.log.WithError(err).WithField("endpoint", ep).Warn("probe: send failed")
		return wire.ProbeInfo{}, false
	}

	buf := make([]byte, maxResponseSize)
	n, err := conn.Read(buf)
	if err != nil {
		p.log.WithError(err).WithField("endpoint", ep).Warn("probe: no response")
		return wire.ProbeInfo{}, false
	}

	parsed, found := wire.ParseInfoResponse(buf[:n])
	if !found {
		p.log.WithField("endpoint", ep).Warn("probe: reply missing infoResponse marker")
		return wire.ProbeInfo{}, false
	}
	return wire.ExtractProbeInfo(parsed), true
}
