package main

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tos-network/ctprivacy/internal/flags"
	"github.com/urfave/cli/v2"
)

// metricsFlag is also picked up from os.Args by the metrics package at init,
// before any meter is registered.
var metricsFlag = &cli.BoolFlag{
	Name:     "metrics",
	Usage:    "Enable metrics collection and log them on exit",
	Category: flags.LoggingCategory,
}

func reportMetrics(ctx *cli.Context) error {
	if !ctx.Bool(metricsFlag.Name) || !metrics.Enabled {
		return nil
	}
	metrics.DefaultRegistry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Timer:
			s := m.Snapshot()
			if s.Count() > 0 {
				log.Info("Timer", "name", name, "count", s.Count(), "mean", time.Duration(s.Mean()), "max", time.Duration(s.Max()))
			}
		case metrics.Meter:
			if n := m.Snapshot().Count(); n > 0 {
				log.Info("Meter", "name", name, "count", n)
			}
		case metrics.Counter:
			if n := m.Snapshot().Count(); n > 0 {
				log.Info("Counter", "name", name, "count", n)
			}
		}
	})
	return nil
}
