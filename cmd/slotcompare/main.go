package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"solperf/internal/pkg/flags"
	"solperf/internal/pkg/logger"
	"solperf/pkg/cmpslots"
)

func main() {
	app := &cli.App{
		Name:   "slotcompare",
		Usage:  "races slot notifications of two solana endpoints and logs which one was first",
		Flags:  flags.All(),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	closer, err := logger.Setup(logger.Options{
		Level: c.String(flags.LogLevel.Name),
		File:  c.String(flags.LogFile.Name),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Errorf("cannot close log file: %v", err)
		}
	}()

	cfg, err := cmpslots.ConfigFromCLI(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *cmpslots.Metrics
	if addr := c.String(flags.MetricsAddr.Name); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = cmpslots.NewMetrics(reg)

		go func() {
			if err := cmpslots.ServeMetrics(ctx, addr, reg); err != nil {
				log.Errorf("metrics server on %s failed: %v", addr, err)
			}
		}()
	}

	for _, e := range cfg.Endpoints {
		if e.GRPCURL != "" {
			log.Infof("%s: gRPC %s, commitment %s", e.Name, e.GRPCURL, cfg.Commitment)
		} else {
			log.Infof("%s: websocket %s", e.Name, e.WebsocketURL)
		}
	}

	if err := cmpslots.NewSupervisor(cfg, cfg.Sources(), metrics).Run(ctx); err != nil {
		return err
	}

	log.Info("shutting down")
	return nil
}
