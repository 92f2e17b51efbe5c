// cmd/preflight/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hamed0406/healthmon/internal/config"
	"github.com/hamed0406/healthmon/internal/probe"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*envFile)
	if err != nil {
		fail(err.Error())
	}
	if _, err := cfg.Policy(); err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("interval=%s probe_timeout=%s", cfg.Monitor.Interval, cfg.Monitor.ProbeTimeout))
	if cfg.Monitor.ProbeTimeout >= cfg.Monitor.Interval {
		warn("PROBE_TIMEOUT is not shorter than MONITOR_INTERVAL; slow cycles will run back to back.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e := cfg.Endpoints
	endpoints := []struct {
		name  string
		addrs []string
	}{
		{"COORDINATION_URL", nonEmpty(e.CoordinationURL)},
		{"KAFKA_BROKERS", e.KafkaBrokers},
		{"REDIS_ADDR", nonEmpty(e.RedisAddr)},
		{"DATABASE_URL", nonEmpty(e.DatabaseURL)},
		{"ELASTIC_ADDRESSES", e.ElasticAddresses},
	}
	for _, ep := range endpoints {
		if len(ep.addrs) == 0 {
			warn(ep.name + " empty; that probe is disabled.")
			continue
		}
		for _, a := range ep.addrs {
			r := probe.Resolve(ctx, nil, a)
			switch r.Class {
			case probe.ResolveOK:
				ok(fmt.Sprintf("%s host %s resolves (%s)", ep.name, r.Host, strings.Join(r.Addrs, ", ")))
			case probe.ResolveInvalid:
				fail(fmt.Sprintf("%s has no host: %q", ep.name, a))
			default:
				warn(fmt.Sprintf("%s host %s: %s %s", ep.name, r.Host, r.Class, r.Err))
			}
		}
	}
	if len(e.KafkaBrokers) > 0 && len(e.KafkaTopics) == 0 {
		warn("KAFKA_TOPICS empty; only the controller is checked.")
	}

	ok("sinks=" + strings.Join(cfg.Storage.Sinks, ","))
	if cfg.HasSink(config.SinkJSONL) {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			fail("DATA_DIR not writable: " + err.Error())
		}
		ok("DATA_DIR=" + cfg.Storage.DataDir)
	}

	if cfg.API.Addr == "" {
		warn("STATUS_ADDR empty; status API disabled.")
	} else {
		ok("STATUS_ADDR=" + cfg.API.Addr)
		if len(cfg.API.APIKeys) == 0 && !strings.HasPrefix(cfg.API.Addr, "127.0.0.1") && !strings.HasPrefix(cfg.API.Addr, "localhost") {
			warn("API_KEYS empty while STATUS_ADDR is not loopback; the status API is open.")
		}
	}
	if cfg.Notify.SlackWebhook == "" {
		warn("SLACK_WEBHOOK_URL empty; alert notifications disabled.")
	} else {
		ok("Slack notifications >= " + cfg.Notify.MinSeverity)
	}

	ok("preflight passed")
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
