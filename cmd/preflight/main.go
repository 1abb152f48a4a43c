// cmd/preflight/main.go
package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/hamed0406/netprobe/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (admin routes will 403).")
	}
	if pub == "" {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fail("config rejected: " + err.Error())
	}
	ok(fmt.Sprintf("config valid (tick=%s, ping_count=%d, dns_queries=%d)",
		cfg.TickInterval, cfg.PingCount, cfg.DNSQueryCount))

	switch {
	case db != "":
		ok("DATABASE_URL present — measurements will be stored in postgres")
	case sqlitePath != "":
		ok("SQLITE_PATH=" + sqlitePath)
	default:
		warn("neither DATABASE_URL nor SQLITE_PATH set — measurements stay in memory and vanish on restart.")
	}

	// Raw ICMP sockets need CAP_NET_RAW; without them the echo prober falls
	// back to per-packet unprivileged pings.
	if conn, err := net.ListenPacket("ip4:icmp", "0.0.0.0"); err != nil {
		warn("no raw socket access (" + err.Error() + ") — echo probes will run unprivileged, one packet at a time.")
	} else {
		_ = conn.Close()
		ok("raw ICMP sockets available — batch echo probing enabled")
	}

	if _, err := os.Stat("/etc/resolv.conf"); err != nil {
		warn("/etc/resolv.conf unreadable — dns probes will use the Go built-in resolver.")
	} else {
		ok("/etc/resolv.conf present")
	}

	ok("preflight passed")
}
