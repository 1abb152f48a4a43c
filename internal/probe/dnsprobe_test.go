package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedResolver runs one scripted step per attempt.
type scriptedResolver struct {
	steps []func() error
	i     int
	calls int
}

func (r *scriptedResolver) Resolve(ctx context.Context, host, recordType string) error {
	r.calls++
	if r.i >= len(r.steps) {
		return errors.New("no more steps")
	}
	step := r.steps[r.i]
	r.i++
	return step()
}

func ok() func() error   { return func() error { return nil } }
func fail() func() error { return func() error { return errors.New("SERVFAIL") } }
func slow(d time.Duration) func() error {
	return func() error { time.Sleep(d); return nil }
}

func TestDNSProber_PartialFailuresDoNotAbort(t *testing.T) {
	r := &scriptedResolver{steps: []func() error{ok(), fail(), ok(), fail(), ok()}}
	p := NewDNSProber(zap.NewNop(), DNSOptions{QueryCount: 5, Timeout: time.Second}, r)

	res, err := p.Probe(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 5, r.calls, "a failing attempt must not stop the rest")
	assert.True(t, res.Success)
	assert.Equal(t, 0.0, res.PacketLossPct)
	require.NotNil(t, res.LatencyMS)
	require.NotNil(t, res.JitterMS, "three successes give a jitter figure")
}

func TestDNSProber_TimeoutExcludedFromLatency(t *testing.T) {
	r := &scriptedResolver{steps: []func() error{slow(200 * time.Millisecond), ok(), ok()}}
	p := NewDNSProber(zap.NewNop(), DNSOptions{QueryCount: 3, Timeout: 30 * time.Millisecond}, r)

	res, err := p.Probe(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.LatencyMS)
	// only the two fast attempts count; the slow one was abandoned
	assert.Less(t, *res.LatencyMS, 100.0)
}

func TestDNSProber_TotalFailure(t *testing.T) {
	r := &scriptedResolver{steps: []func() error{fail(), fail(), fail()}}
	p := NewDNSProber(zap.NewNop(), DNSOptions{QueryCount: 3, Timeout: time.Second}, r)

	res, err := p.Probe(context.Background(), "example.com")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 100.0, res.PacketLossPct)
	assert.Nil(t, res.LatencyMS)
	assert.Equal(t, "SERVFAIL", res.Message)
}

func TestDNSProber_SingleSuccessHasNoJitter(t *testing.T) {
	r := &scriptedResolver{steps: []func() error{ok(), fail()}}
	p := NewDNSProber(zap.NewNop(), DNSOptions{QueryCount: 2, Timeout: time.Second}, r)

	res, err := p.Probe(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.JitterMS)
}

func TestDNSProber_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &scriptedResolver{steps: []func() error{ok(), ok()}}
	p := NewDNSProber(zap.NewNop(), DNSOptions{QueryCount: 2, Timeout: time.Second}, r)

	_, err := p.Probe(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
