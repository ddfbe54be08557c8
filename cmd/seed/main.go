// Command seed floods a running rediguard instance with demo traffic:
// one-shot bulk seeding or timed streaming.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
	"github.com/ajitpdevops/rediguard/internal/seed"
	"github.com/ajitpdevops/rediguard/pkg/logger"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8000", "rediguard base URL")
		count       = flag.Int("count", 100, "events to send (0 with -stream means unbounded)")
		stream      = flag.Bool("stream", false, "stream events on an interval instead of bulk seeding")
		interval    = flag.Duration("interval", time.Second, "delay between streamed events")
		rngSeed     = flag.Int64("seed", 42, "RNG seed for reproducible traffic")
		concurrency = flag.Int("concurrency", 8, "bulk submission concurrency")
		skipBadIPs  = flag.Bool("skip-bad-ips", false, "do not pre-seed the malicious IP set")
	)
	flag.Parse()

	logger.Init("info")
	log := logger.Named("seed-cli")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &httpSubmitter{base: *baseURL, http: &http.Client{Timeout: 10 * time.Second}}

	if !*skipBadIPs {
		for _, ip := range seed.MaliciousIPs() {
			if err := client.addMaliciousIP(ctx, ip); err != nil {
				log.Error(ctx, "pre-seeding bad IP failed", logger.String("ip", ip), logger.Error(err))
				os.Exit(1)
			}
		}
		log.Info(ctx, "malicious IPs pre-seeded", logger.Int("count", len(seed.MaliciousIPs())))
	}

	runner := seed.NewRunner(seed.NewGenerator(seed.WithSeed(*rngSeed)), client, *concurrency)

	var err error
	if *stream {
		err = runner.Stream(ctx, *interval, *count)
	} else {
		err = runner.Seed(ctx, *count)
	}
	if err != nil && ctx.Err() == nil {
		log.Error(ctx, "seeding failed", logger.Error(err))
		os.Exit(1)
	}
}

// httpSubmitter posts generated events to the ingestion endpoint.
type httpSubmitter struct {
	base string
	http *http.Client
}

func (s *httpSubmitter) Submit(ctx context.Context, e model.LoginEvent) error {
	body, err := json.Marshal(map[string]any{
		"user_id":   e.UserID,
		"ip":        e.IP,
		"location":  e.Location,
		"timestamp": e.Timestamp,
	})
	if err != nil {
		return err
	}
	return s.post(ctx, "/api/v1/events/login", body)
}

func (s *httpSubmitter) addMaliciousIP(ctx context.Context, ip string) error {
	body, err := json.Marshal(map[string]string{"ip": ip})
	if err != nil {
		return err
	}
	return s.post(ctx, "/api/v1/security/add-malicious-ip", body)
}

func (s *httpSubmitter) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s answered %d", path, resp.StatusCode)
	}
	return nil
}
