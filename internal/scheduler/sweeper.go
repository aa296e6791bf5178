// Package scheduler runs the two periodic background tasks that keep the
// registry fresh: the Sweeper (re-probes known endpoints) and the
// UpstreamSync (pulls endpoint lists from configured upstream masters).
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wahke/ET-Masterserver/internal/prober"
	"github.com/wahke/ET-Masterserver/internal/registry"
)

const (
	sweepInterval    = 5 * time.Second
	sweepCooldown    = 15 * time.Second
	heartbeatWindow  = 720 * time.Second
	maxParallelProbe = 100
)

// Sweeper periodically re-probes endpoints that have heartbeated recently
// but haven't been probed in the last probe-cooldown window, refreshing
// their liveness without waiting for their next heartbeat.
type Sweeper struct {
	reg    *registry.Registry
	aux    *registry.Aux
	prober *prober.Prober
	log    logrus.FieldLogger
}

// NewSweeper constructs a Sweeper over the given registry state.
func NewSweeper(reg *registry.Registry, aux *registry.Aux, p *prober.Prober, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{reg: reg, aux: aux, prober: p, log: log}
}

// Run ticks every sweepInterval until ctx is canceled. Each tick runs to
// completion (all eligible probes settle) before the next tick starts.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.log.WithError(err).Error("sweeper: tick failed")
			}
		}
	}
}

// tick snapshots all known endpoints, filters to those eligible under
// Aux.SweepEligible, and probes up to maxParallelProbe of them
// concurrently, waiting for all to settle before returning.
func (s *Sweeper) tick(ctx context.Context) error {
	endpoints, err := s.reg.GetAllEndpoints()
	if err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelProbe)

	for _, ep := range endpoints {
		if !s.aux.SweepEligible(ep, heartbeatWindow, sweepCooldown) {
			continue
		}
		ep := ep
		group.Go(func() error {
			info, ok := s.prober.Probe(gctx, ep)
			if !ok {
				return nil
			}
			if err := s.reg.UpsertInfo(ep, info); err != nil {
				s.log.WithError(err).WithField("endpoint", ep).Error("sweeper: registry upsert failed")
			}
			return nil
		})
	}

	// The probe goroutines above swallow their own failures and always
	// return nil, so Wait returns nil once every probe has settled.
	return group.Wait()
}
