// tracerec samples the plant snapshot endpoint at a fixed interval and
// writes one JSON line per sample. The resulting trace file feeds
// offline analysis and the tracereplay tool.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"
)

type config struct {
	baseURL  string
	out      string
	interval time.Duration
	duration time.Duration
}

type traceEntry struct {
	Time      time.Time       `json:"time"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	cfg := parseConfig()

	f, err := os.Create(cfg.out)
	if err != nil {
		log.Fatalf("create trace file: %v", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimRight(cfg.baseURL, "/")

	log.Printf("recording %s/api/snapshot to %s every %s for %s (Ctrl+C stops early)",
		base, cfg.out, cfg.interval, cfg.duration)

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	deadline := time.After(cfg.duration)

	entries := 0
loop:
	for {
		snapshot, err := fetchSnapshot(ctx, client, base)
		switch {
		case ctx.Err() != nil:
			log.Printf("recording stopped")
			break loop
		case err != nil:
			log.Printf("snapshot: %v", err)
		default:
			entry := traceEntry{Time: time.Now().UTC(), Operation: "snapshot", Data: snapshot}
			if err := enc.Encode(entry); err != nil {
				log.Fatalf("write trace: %v", err)
			}
			entries++
			if entries%60 == 0 {
				log.Printf("recorded %d entries", entries)
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("recording stopped")
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
		}
	}

	if err := w.Flush(); err != nil {
		log.Fatalf("flush trace: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close trace: %v", err)
	}
	log.Printf("saved %d entries to %s", entries, cfg.out)
}

func fetchSnapshot(ctx context.Context, client *http.Client, base string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/snapshot", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.baseURL, "url", envOrDefault("PLANT_URL", "http://localhost:8080"), "plant base URL")
	flag.StringVar(&cfg.out, "out", "trace.jsonl", "output trace file")
	flag.DurationVar(&cfg.interval, "interval", time.Second, "sampling interval")
	flag.DurationVar(&cfg.duration, "duration", 30*time.Minute, "recording duration")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
