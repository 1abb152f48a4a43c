package probe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EchoOptions tunes one echo probe invocation.
type EchoOptions struct {
	Count              int           // packets per probe
	Timeout            time.Duration // base per-packet timeout
	Interval           time.Duration // spacing between packets within an attempt
	BackoffFactor      float64       // timeout multiplier per retry attempt
	Retries            int           // retry attempts after the first
	EarlyStopOnSuccess bool          // stop once any attempt yields a reply
}

// PacketSender sends one echo request and waits for its reply.
type PacketSender interface {
	Send(ctx context.Context, host string, seq int, timeout time.Duration) (time.Duration, error)
}

// BatchResult is the aggregate a batch-capable mechanism reports for one
// invocation covering many packets.
type BatchResult struct {
	Sent int
	RTTs []float64 // successful round trips, ms
}

// BatchSender sends a full packet batch in a single invocation. Available
// reports whether the mechanism can run at all (e.g. raw-socket permission);
// it may be expensive and is consulted once per process.
type BatchSender interface {
	Available() bool
	Probe(ctx context.Context, host string, count int, interval, timeout time.Duration) (BatchResult, error)
}

// PingProber is the echo probe executor. It prefers the batch mechanism when
// the host grants it and otherwise runs the per-packet retry/backoff loop.
type PingProber struct {
	log    *zap.Logger
	opts   EchoOptions
	sender PacketSender
	batch  BatchSender

	capOnce sync.Once
	capOK   bool
}

func NewPingProber(log *zap.Logger, opts EchoOptions, sender PacketSender, batch BatchSender) *PingProber {
	if opts.Count < 1 {
		opts.Count = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.BackoffFactor < 1 {
		opts.BackoffFactor = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &PingProber{log: log, opts: opts, sender: sender, batch: batch}
}

func (p *PingProber) Probe(ctx context.Context, host string) (Result, error) {
	if p.batchCapable() {
		br, err := p.batch.Probe(ctx, host, p.opts.Count, p.opts.Interval, p.opts.Timeout)
		if err == nil {
			return buildResult(br.Sent, br.RTTs), nil
		}
		p.log.Warn("batch_ping_fallback", zap.String("host", host), zap.Error(err))
	}
	return p.probeLoop(ctx, host)
}

// batchCapable probes availability once and caches the answer for the
// process lifetime.
func (p *PingProber) batchCapable() bool {
	p.capOnce.Do(func() {
		p.capOK = p.batch != nil && p.batch.Available()
		p.log.Info("batch_ping_capability", zap.Bool("available", p.capOK))
	})
	return p.capOK
}

// probeLoop distributes the packet budget across attempts, escalating the
// timeout after each attempt. A lost packet is absorbed as loss and never
// aborts the attempt.
func (p *PingProber) probeLoop(ctx context.Context, host string) (Result, error) {
	plan := packetAllocation(p.opts.Count, p.opts.Retries)
	timeout := p.opts.Timeout

	sent := 0
	var rtts []float64
	for _, n := range plan {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			if sent > 0 && p.opts.Interval > 0 {
				if !sleepCtx(ctx, p.opts.Interval) {
					return Result{}, ctx.Err()
				}
			}
			rtt, err := p.sender.Send(ctx, host, sent, timeout)
			sent++
			if err == nil {
				rtts = append(rtts, durationMS(rtt))
			}
		}
		if p.opts.EarlyStopOnSuccess && len(rtts) > 0 {
			break
		}
		timeout = escalate(timeout, p.opts.BackoffFactor)
	}
	return buildResult(sent, rtts), nil
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// sleepCtx waits for d or until ctx is done; reports whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
