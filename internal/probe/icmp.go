package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const protocolICMP = 1

// UDPPinger sends echo requests over an unprivileged datagram ICMP socket
// (udp4), one packet per Send call. This is the fallback path that works
// without raw-socket capability on Linux hosts with ping_group_range set.
type UDPPinger struct{}

var _ PacketSender = (*UDPPinger)(nil)

func (u *UDPPinger) Send(ctx context.Context, host string, seq int, timeout time.Duration) (time.Duration, error) {
	ip, err := resolveIPv4(ctx, host)
	if err != nil {
		return 0, err
	}
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return 0, fmt.Errorf("listen udp4 icmp: %w", err)
	}
	defer conn.Close()

	echoID := os.Getpid() & 0xffff
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: echoID, Seq: seq, Data: []byte("netprobe")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, &net.UDPAddr{IP: ip}); err != nil {
		return 0, fmt.Errorf("send echo: %w", err)
	}
	if err := conn.SetReadDeadline(start.Add(timeout)); err != nil {
		return 0, err
	}

	rb := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			return 0, fmt.Errorf("echo reply: %w", err)
		}
		rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil {
			continue
		}
		if rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		body, ok := rm.Body.(*icmp.Echo)
		if !ok || body.Seq != seq {
			continue
		}
		return time.Since(start), nil
	}
}

// packetConn is the slice of *icmp.PacketConn the batch pinger uses.
type packetConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, dst net.Addr) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// RawBatchPinger sends a whole packet batch over one raw ICMP socket while a
// receiver collects replies concurrently, so an RTT reflects the reply's
// arrival time rather than when the send loop got around to reading it.
// Requires CAP_NET_RAW (or root).
type RawBatchPinger struct {
	listen func() (packetConn, error) // test seam; nil means a real raw socket
}

var _ BatchSender = (*RawBatchPinger)(nil)

// Available reports whether a raw ICMP socket can be opened at all.
func (r *RawBatchPinger) Available() bool {
	conn, err := r.open()
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (r *RawBatchPinger) open() (packetConn, error) {
	if r.listen != nil {
		return r.listen()
	}
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("listen raw icmp: %w", err)
	}
	return conn, nil
}

func (r *RawBatchPinger) Probe(ctx context.Context, host string, count int, interval, timeout time.Duration) (BatchResult, error) {
	ip, err := resolveIPv4(ctx, host)
	if err != nil {
		return BatchResult{}, err
	}
	conn, err := r.open()
	if err != nil {
		return BatchResult{}, err
	}
	defer conn.Close()

	echoID := os.Getpid() & 0xffff
	dst := &net.IPAddr{IP: ip}

	// sendTimes is shared with the receiver; a reply is matched and removed
	// under the lock so duplicates cannot double-count
	var mu sync.Mutex
	sendTimes := make(map[int]time.Time, count)
	rtts := make([]float64, 0, count)

	// generous initial deadline covering the whole send phase; tightened to
	// the configured timeout once sending completes
	if err := conn.SetReadDeadline(time.Now().Add(time.Duration(count)*interval + timeout)); err != nil {
		return BatchResult{}, err
	}

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		rb := make([]byte, 1500)
		for received := 0; received < count; {
			n, _, err := conn.ReadFrom(rb)
			now := time.Now()
			if err != nil {
				return // deadline or socket error ends collection
			}
			rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
			if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
				continue
			}
			body, ok := rm.Body.(*icmp.Echo)
			if !ok || body.ID != echoID {
				continue
			}
			mu.Lock()
			ts, known := sendTimes[body.Seq]
			if known {
				delete(sendTimes, body.Seq)
				rtts = append(rtts, durationMS(now.Sub(ts)))
			}
			mu.Unlock()
			if known {
				received++
			}
		}
	}()

	sent := 0
	var sendErr error
	for seq := 0; seq < count; seq++ {
		if err := ctx.Err(); err != nil {
			sendErr = err
			break
		}
		msg := icmp.Message{
			Type: ipv4.ICMPTypeEcho,
			Code: 0,
			Body: &icmp.Echo{ID: echoID, Seq: seq, Data: []byte("netprobe")},
		}
		wb, err := msg.Marshal(nil)
		if err != nil {
			sendErr = fmt.Errorf("marshal echo: %w", err)
			break
		}
		mu.Lock()
		sendTimes[seq] = time.Now()
		mu.Unlock()
		if _, err := conn.WriteTo(wb, dst); err != nil {
			// count it as sent and lost, keep going
			mu.Lock()
			delete(sendTimes, seq)
			mu.Unlock()
			sent++
			continue
		}
		sent++
		if interval > 0 && seq < count-1 {
			if !sleepCtx(ctx, interval) {
				sendErr = ctx.Err()
				break
			}
		}
	}

	// unblock the receiver: expire the deadline on error, otherwise give
	// stragglers the configured timeout from now
	if sendErr != nil {
		_ = conn.SetReadDeadline(time.Now())
		<-recvDone
		return BatchResult{}, sendErr
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	<-recvDone

	mu.Lock()
	defer mu.Unlock()
	return BatchResult{Sent: sent, RTTs: rtts}, nil
}

func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("not an IPv4 address: %s", host)
	}
	addr, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, a := range addr {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}
