// Command masterserver runs the ET protocol-84 master server registry:
// the UDP listener, the sweeper, the upstream sync crawler, and the
// read-only JSON dashboard API, all sharing one registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/wahke/ET-Masterserver/internal/api"
	"github.com/wahke/ET-Masterserver/internal/config"
	"github.com/wahke/ET-Masterserver/internal/listener"
	"github.com/wahke/ET-Masterserver/internal/logging"
	"github.com/wahke/ET-Masterserver/internal/prober"
	"github.com/wahke/ET-Masterserver/internal/registry"
	"github.com/wahke/ET-Masterserver/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration document")
	logDir := flag.String("log-dir", "logs", "directory for append-only log files (empty disables file logging)")
	flag.Parse()

	if err := run(*configPath, *logDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, logDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(logDir)
	if err != nil {
		return err
	}

	store, err := registry.OpenBoltStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := registry.New(store)
	aux := registry.NewAux()
	p := prober.New(aux, log)

	udpListener, err := listener.Bind(cfg.UDPAddr(), reg, aux, p, log)
	if err != nil {
		// The one fatal condition in this system: failure to bind the
		// UDP port at startup.
		return fmt.Errorf("fatal: %w", err)
	}
	defer udpListener.Close()

	log.WithField("addr", cfg.UDPAddr()).Info("udp listener bound")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := scheduler.NewSweeper(reg, aux, p, log)
	upstream := scheduler.NewUpstreamSync(reg, log, cfg.KnownProtocols, cfg.MasterHosts())
	apiServer := api.New(reg, log)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return udpListener.Run(gctx) })
	group.Go(func() error { return sweeper.Run(gctx) })
	group.Go(func() error { return upstream.Run(gctx) })
	group.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr()).Info("http api listening")
		return api.ListenAndServe(gctx, cfg.HTTPAddr(), sslCertIfEnabled(cfg), sslKeyIfEnabled(cfg), apiServer.Handler())
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func sslCertIfEnabled(cfg *config.Config) string {
	if !cfg.UseSSL {
		return ""
	}
	return cfg.SSLCert
}

func sslKeyIfEnabled(cfg *config.Config) string {
	if !cfg.UseSSL {
		return ""
	}
	return cfg.SSLKey
}
