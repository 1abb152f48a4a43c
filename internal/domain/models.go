package domain

import "time"

type TargetID string

type ProbeType string

const (
	ProbeEcho ProbeType = "echo"
	ProbeDNS  ProbeType = "dns"
)

type TargetStatus string

const (
	TargetActive TargetStatus = "active"
	TargetPaused TargetStatus = "paused"
	TargetError  TargetStatus = "error"
)

// Target is owned by the registry; the probing core only reads it.
type Target struct {
	ID              TargetID     `json:"id"`
	Host            string       `json:"host"`
	ProbeType       ProbeType    `json:"probe_type"`
	IntervalSeconds int          `json:"interval_seconds"`
	Status          TargetStatus `json:"status"`
	Group           string       `json:"group,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Interval is the probe cadence as a duration.
func (t *Target) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Measurement is one statistical sample produced by a probe executor from
// several raw attempts. Immutable once created. LatencyMS and JitterMS are
// nil when no successful raw attempt contributed to them.
type Measurement struct {
	ID            string    `json:"id"`
	TargetID      TargetID  `json:"target_id"`
	Timestamp     time.Time `json:"timestamp"`
	LatencyMS     *float64  `json:"latency_ms"`
	PacketLossPct float64   `json:"packet_loss_pct"`
	JitterMS      *float64  `json:"jitter_ms"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// DataPoint is the read-side projection of one interval. IsOnline == nil
// means no sample landed in the interval, distinct from false, which means
// a sample exists and the probe failed.
type DataPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	LatencyMS  *float64  `json:"latency_ms"`
	PacketLoss *float64  `json:"packet_loss"`
	JitterMS   *float64  `json:"jitter_ms"`
	IsOnline   *bool     `json:"is_online"`
}

// AggregateStats is derived on demand from a DataPoint window, never persisted.
type AggregateStats struct {
	AvgLatencyMS      float64  `json:"avg_latency_ms"`
	MinLatencyMS      float64  `json:"min_latency_ms"`
	MaxLatencyMS      float64  `json:"max_latency_ms"`
	JitterAvgMS       float64  `json:"jitter_avg_ms"`
	JitterMinMS       float64  `json:"jitter_min_ms"`
	JitterMaxMS       float64  `json:"jitter_max_ms"`
	PacketLossDecayed float64  `json:"packet_loss_decayed"`
	UptimePct         float64  `json:"uptime_pct"`
	CurrentLatencyMS  *float64 `json:"current_latency_ms"`
	CurrentPacketLoss *float64 `json:"current_packet_loss"`
	CurrentJitterMS   *float64 `json:"current_jitter_ms"`
	CurrentlyOnline   bool     `json:"currently_online"`
}

func Float(v float64) *float64 { return &v }

func Bool(v bool) *bool { return &v }
