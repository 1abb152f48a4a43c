package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/config"
	"github.com/hamed0406/netprobe/internal/probe"
)

// One-shot probe from the terminal: probes a single host with the echo or
// dns prober and prints the raw result as JSON.
func main() {
	probeType := flag.String("type", "echo", "probe type: echo or dns")
	flag.Parse()

	host := flag.Arg(0)
	if host == "" {
		fmt.Fprintln(os.Stderr, "usage: cli [-type echo|dns] <host>")
		os.Exit(2)
	}

	cfg := config.FromEnv()
	log := zap.NewNop()

	var p probe.Prober
	switch *probeType {
	case "echo":
		p = probe.NewPingProber(log, probe.EchoOptions{
			Count:              cfg.PingCount,
			Timeout:            cfg.PingTimeout,
			Interval:           cfg.PingInterval,
			BackoffFactor:      cfg.BackoffFactor,
			Retries:            cfg.Retries,
			EarlyStopOnSuccess: cfg.EarlyStopOnSuccess,
		}, &probe.UDPPinger{}, &probe.RawBatchPinger{})
	case "dns":
		p = probe.NewDNSProber(log, probe.DNSOptions{
			QueryCount: cfg.DNSQueryCount,
			RecordType: cfg.DNSRecordType,
			Timeout:    cfg.DNSTimeout,
		}, probe.NewSystemResolver(cfg.DNSTimeout))
	default:
		fmt.Fprintln(os.Stderr, "unknown probe type:", *probeType)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := p.Probe(ctx, host)
	if err != nil {
		fmt.Fprintln(os.Stderr, "probe failed:", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	if !res.Success {
		os.Exit(1)
	}
}
