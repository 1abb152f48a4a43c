package stats

import (
	"math"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

// Options tunes the aggregation of a DataPoint window.
type Options struct {
	// DecayPerMinute is the exponential decay constant k in
	// weight = exp(-ageMinutes * k). The default makes a 15 minute old
	// sample weigh about 100x less than a fresh one.
	DecayPerMinute float64
	// RecentWindow is the lookback for the recency bias.
	RecentWindow time.Duration
	// RecentLossThresholdPct triggers the bias when the recent unweighted
	// mean loss exceeds it.
	RecentLossThresholdPct float64
	// OnlineWindow is the trailing range in which any successful sample
	// counts as "currently online".
	OnlineWindow time.Duration
}

func DefaultOptions() Options {
	return Options{
		DecayPerMinute:         0.307,
		RecentWindow:           5 * time.Minute,
		RecentLossThresholdPct: 20,
		OnlineWindow:           time.Hour,
	}
}

// Aggregate reduces an ordered DataPoint window to summary indicators.
// Gap points (IsOnline == nil) are excluded from every rate: they mean "no
// sample", not "offline".
func Aggregate(points []domain.DataPoint, now time.Time, opts Options) domain.AggregateStats {
	if opts.DecayPerMinute <= 0 {
		opts.DecayPerMinute = DefaultOptions().DecayPerMinute
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = DefaultOptions().RecentWindow
	}
	if opts.OnlineWindow <= 0 {
		opts.OnlineWindow = DefaultOptions().OnlineWindow
	}

	var out domain.AggregateStats

	// latency over samples that have one
	var latencies []float64
	for _, p := range points {
		if p.LatencyMS != nil {
			latencies = append(latencies, *p.LatencyMS)
		}
	}
	out.AvgLatencyMS, out.MinLatencyMS, out.MaxLatencyMS = avgMinMax(latencies)

	// jitter: a present sample without a jitter figure contributes 0 to the
	// average but is excluded from min/max
	var jitterSum float64
	var jitterVals []float64
	present := 0
	online := 0
	for _, p := range points {
		if p.IsOnline == nil {
			continue
		}
		present++
		if *p.IsOnline {
			online++
		}
		if p.JitterMS != nil {
			jitterSum += *p.JitterMS
			jitterVals = append(jitterVals, *p.JitterMS)
		}
	}
	if present > 0 {
		out.JitterAvgMS = jitterSum / float64(present)
		out.UptimePct = float64(online) / float64(present) * 100
	}
	_, out.JitterMinMS, out.JitterMaxMS = avgMinMax(jitterVals)

	out.PacketLossDecayed = decayedLoss(points, now, opts)

	// current values come verbatim from the most recent non-gap sample
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].IsOnline == nil {
			continue
		}
		out.CurrentLatencyMS = points[i].LatencyMS
		out.CurrentPacketLoss = points[i].PacketLoss
		out.CurrentJitterMS = points[i].JitterMS
		break
	}

	// "currently online" looks at a trailing window, not just the latest
	// sample, so one dropped probe does not flicker the state
	for _, p := range points {
		if p.IsOnline != nil && *p.IsOnline && now.Sub(p.Timestamp) <= opts.OnlineWindow {
			out.CurrentlyOnline = true
			break
		}
	}
	return out
}

// decayedLoss is the exponential time-decay weighted mean of the known
// loss values, pushed upward (never downward) when the recent window shows
// sustained loss above the threshold.
func decayedLoss(points []domain.DataPoint, now time.Time, opts Options) float64 {
	var weightSum, weighted float64
	var recentSum float64
	recentCount := 0
	for _, p := range points {
		if p.PacketLoss == nil {
			continue
		}
		age := now.Sub(p.Timestamp)
		ageMinutes := age.Minutes()
		if ageMinutes < 0 {
			ageMinutes = 0
		}
		w := math.Exp(-ageMinutes * opts.DecayPerMinute)
		weightSum += w
		weighted += w * *p.PacketLoss

		if age <= opts.RecentWindow {
			recentSum += *p.PacketLoss
			recentCount++
		}
	}
	if weightSum == 0 {
		return 0
	}
	decayed := weighted / weightSum

	if recentCount > 0 {
		recentMean := recentSum / float64(recentCount)
		if recentMean > opts.RecentLossThresholdPct {
			bias := recentMean / 100
			if bias > 0.9 {
				bias = 0.9
			}
			if candidate := recentMean * bias; candidate > decayed {
				decayed = candidate
			}
		}
	}
	return decayed
}

func avgMinMax(xs []float64) (avg, min, max float64) {
	if len(xs) == 0 {
		return 0, 0, 0
	}
	min, max = xs[0], xs[0]
	var sum float64
	for _, x := range xs {
		sum += x
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return sum / float64(len(xs)), min, max
}
