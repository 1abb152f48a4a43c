package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// settle delay between consecutive resolution attempts
const dnsSettleDelay = 50 * time.Millisecond

// DNSOptions tunes one DNS probe invocation.
type DNSOptions struct {
	QueryCount int           // resolution attempts per probe
	RecordType string        // "A", "AAAA", "MX", ...; defaults to A
	Timeout    time.Duration // per-query timeout
}

// Resolver performs one resolution attempt. Implementations should respect
// ctx for their own transport timeouts but callers race the attempt against
// a timer anyway, so a stuck resolver is abandoned rather than cancelled.
type Resolver interface {
	Resolve(ctx context.Context, host, recordType string) error
}

// DNSProber is the name-resolution probe executor.
type DNSProber struct {
	log      *zap.Logger
	opts     DNSOptions
	resolver Resolver
}

func NewDNSProber(log *zap.Logger, opts DNSOptions, resolver Resolver) *DNSProber {
	if opts.QueryCount < 1 {
		opts.QueryCount = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RecordType == "" {
		opts.RecordType = "A"
	}
	return &DNSProber{log: log, opts: opts, resolver: resolver}
}

// Probe issues QueryCount sequential resolutions, each raced against the
// per-query timeout. A timed-out or failing attempt is excluded from the
// latency figures but never aborts the remaining attempts.
func (d *DNSProber) Probe(ctx context.Context, host string) (Result, error) {
	var rtts []float64
	var lastErr string
	for i := 0; i < d.opts.QueryCount; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if i > 0 {
			if !sleepCtx(ctx, dnsSettleDelay) {
				return Result{}, ctx.Err()
			}
		}
		elapsed, err := d.attempt(ctx, host)
		if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
			return Result{}, err
		}
		if err != nil {
			lastErr = err.Error()
			continue
		}
		rtts = append(rtts, durationMS(elapsed))
	}

	r := Result{Success: len(rtts) > 0}
	if r.Success {
		r.LatencyMS = mean(rtts)
		r.JitterMS = Jitter(rtts)
	} else {
		// packet loss is not meaningful for resolution; total failure is
		// reported as full loss so downstream aggregation treats it as such
		r.PacketLossPct = 100
		r.Message = lastErr
	}
	return r, nil
}

var errQueryTimeout = errors.New("query timeout")

// attempt races one resolution against the timeout. The loser is abandoned:
// resolution may not be abortable, so the goroutine drains into a buffered
// channel instead of being cancelled.
func (d *DNSProber) attempt(ctx context.Context, host string) (time.Duration, error) {
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- d.resolver.Resolve(ctx, host, d.opts.RecordType)
	}()

	t := time.NewTimer(d.opts.Timeout)
	defer t.Stop()
	select {
	case err := <-done:
		if err != nil {
			return 0, err
		}
		return time.Since(start), nil
	case <-t.C:
		return 0, errQueryTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// MiekgResolver queries the system's configured nameservers directly.
type MiekgResolver struct {
	client  *dns.Client
	servers []string
}

var _ Resolver = (*MiekgResolver)(nil)

// NewSystemResolver builds a resolver from /etc/resolv.conf, falling back to
// the OS resolver when that file cannot be read.
func NewSystemResolver(timeout time.Duration) Resolver {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return &osResolver{}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return &MiekgResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}
}

func (r *MiekgResolver) Resolve(ctx context.Context, host, recordType string) error {
	qtype, ok := dns.StringToType[strings.ToUpper(recordType)]
	if !ok {
		qtype = dns.TypeA
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			return fmt.Errorf("dns rcode %s", dns.RcodeToString[resp.Rcode])
		}
		if len(resp.Answer) == 0 {
			return fmt.Errorf("no %s records", strings.ToUpper(recordType))
		}
		return nil
	}
	return lastErr
}

// osResolver delegates to the platform resolver; record type narrows to the
// address family where the stdlib allows it.
type osResolver struct{}

func (o *osResolver) Resolve(ctx context.Context, host, recordType string) error {
	network := "ip"
	switch strings.ToUpper(recordType) {
	case "A":
		network = "ip4"
	case "AAAA":
		network = "ip6"
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, network, host)
	if err != nil {
		return err
	}
	if len(ips) == 0 {
		return errors.New("no addresses")
	}
	return nil
}
