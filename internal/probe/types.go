package probe

import (
	"context"
	"math"
)

// Result is the statistical outcome of one probe invocation, distilled from
// several raw attempts. LatencyMS and JitterMS are nil when no successful
// attempt contributed to them.
type Result struct {
	LatencyMS     *float64 `json:"latency_ms"`
	PacketLossPct float64  `json:"packet_loss_pct"`
	JitterMS      *float64 `json:"jitter_ms"`
	Success       bool     `json:"success"`
	Message       string   `json:"message,omitempty"`
}

// Prober turns one host into one Result. An error return means the probe
// could not run at all; per-attempt timeouts are folded into the Result
// as loss instead.
type Prober interface {
	Probe(ctx context.Context, host string) (Result, error)
}

// buildResult aggregates raw round-trip samples into a Result.
// sent is the number of attempts made, rtts the successful ones in ms.
func buildResult(sent int, rtts []float64) Result {
	received := len(rtts)
	r := Result{Success: received > 0}
	if sent == 0 {
		r.PacketLossPct = 100
		return r
	}
	r.PacketLossPct = math.Round(float64(sent-received) / float64(sent) * 100)
	if received > 0 {
		// rounding must not report total loss when replies exist
		if r.PacketLossPct >= 100 {
			r.PacketLossPct = 99
		}
		r.LatencyMS = mean(rtts)
		r.JitterMS = Jitter(rtts)
	}
	return r
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	v := sum / float64(len(xs))
	return &v
}
