package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMeasurement_JSONRoundTrip(t *testing.T) {
	want := Measurement{
		ID:            "m1",
		TargetID:      TargetID("T1"),
		Timestamp:     time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
		LatencyMS:     Float(12.5),
		PacketLossPct: 25,
		JitterMS:      Float(1.25),
		Success:       true,
	}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Measurement
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.TargetID != want.TargetID || got.Success != want.Success ||
		got.PacketLossPct != want.PacketLossPct || !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("mismatch after round-trip:\nwant=%+v\ngot =%+v", want, got)
	}
	if got.LatencyMS == nil || *got.LatencyMS != *want.LatencyMS {
		t.Fatalf("latency mismatch: want=%v got=%v", want.LatencyMS, got.LatencyMS)
	}
}

func TestDataPoint_NullFieldsSurviveJSON(t *testing.T) {
	gap := DataPoint{Timestamp: time.Now().UTC()}
	b, err := json.Marshal(gap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got DataPoint
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.IsOnline != nil || got.LatencyMS != nil {
		t.Fatalf("gap fields should stay nil, got %+v", got)
	}
}

func TestTarget_Interval(t *testing.T) {
	tgt := Target{IntervalSeconds: 60}
	if tgt.Interval() != time.Minute {
		t.Fatalf("want 1m, got %v", tgt.Interval())
	}
}
