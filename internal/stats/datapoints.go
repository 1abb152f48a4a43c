package stats

import (
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

// Window projects measurements onto fixed-width buckets covering
// [start, end). A bucket without any measurement becomes an explicit gap
// (all fields nil); a bucket with measurements averages them and is online
// when any of them succeeded. Measurements must be ascending by timestamp,
// as the stores return them.
func Window(ms []domain.Measurement, start, end time.Time, bucket time.Duration) []domain.DataPoint {
	if bucket <= 0 || !end.After(start) {
		return nil
	}
	n := int(end.Sub(start) / bucket)
	if end.Sub(start)%bucket != 0 {
		n++
	}
	points := make([]domain.DataPoint, 0, n)

	i := 0
	for b := 0; b < n; b++ {
		bs := start.Add(time.Duration(b) * bucket)
		be := bs.Add(bucket)

		var latencies, losses, jitters []float64
		anyOnline := false
		sampled := false
		for i < len(ms) && ms[i].Timestamp.Before(be) {
			m := ms[i]
			i++
			if m.Timestamp.Before(bs) {
				continue
			}
			sampled = true
			losses = append(losses, m.PacketLossPct)
			if m.LatencyMS != nil {
				latencies = append(latencies, *m.LatencyMS)
			}
			if m.JitterMS != nil {
				jitters = append(jitters, *m.JitterMS)
			}
			if m.Success {
				anyOnline = true
			}
		}

		p := domain.DataPoint{Timestamp: bs}
		if sampled {
			p.IsOnline = domain.Bool(anyOnline)
			if len(losses) > 0 {
				avg, _, _ := avgMinMax(losses)
				p.PacketLoss = domain.Float(avg)
			}
			if len(latencies) > 0 {
				avg, _, _ := avgMinMax(latencies)
				p.LatencyMS = domain.Float(avg)
			}
			if len(jitters) > 0 {
				avg, _, _ := avgMinMax(jitters)
				p.JitterMS = domain.Float(avg)
			}
		}
		points = append(points, p)
	}
	return points
}
