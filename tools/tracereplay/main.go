// tracereplay re-runs a recorded interaction session against a live
// plant. It reads the operations log (JSON lines), resets the plant and
// replays every tag write and scenario start with the original timing,
// so a captured intrusion can be reproduced end to end.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	baseURL string
	token   string
	speed   float64
	reset   bool
}

// traceEntry matches the fields of an operations log line that matter
// for replay. Lines with other actions are skipped.
type traceEntry struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Value  string    `json:"value"`
}

func main() {
	cfg := parseConfig()
	if flag.NArg() < 1 {
		log.Fatal("usage: tracereplay [flags] <trace.jsonl>")
	}

	entries, err := loadTrace(flag.Arg(0))
	if err != nil {
		log.Fatalf("load trace: %v", err)
	}
	if len(entries) == 0 {
		log.Fatal("trace contains no replayable operations")
	}
	log.Printf("trace holds %d operations from %s to %s",
		len(entries),
		entries[0].Time.Format(time.RFC3339),
		entries[len(entries)-1].Time.Format(time.RFC3339))

	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimRight(cfg.baseURL, "/")

	if cfg.reset {
		log.Printf("resetting plant at %s", base)
		if err := post(ctx, client, cfg.token, base+"/api/reset", nil); err != nil {
			log.Fatalf("reset: %v", err)
		}
		time.Sleep(2 * time.Second)
	}

	start := time.Now()
	traceStart := entries[0].Time
	for _, e := range entries {
		offset := e.Time.Sub(traceStart)
		if cfg.speed > 0 {
			offset = time.Duration(float64(offset) / cfg.speed)
		}
		if wait := offset - time.Since(start); wait > 0 {
			time.Sleep(wait)
		}

		switch e.Action {
		case "tag_write":
			log.Printf("[%s] write %s = %s", e.Time.Format(time.RFC3339), e.Target, e.Value)
			body := map[string]any{"tag": e.Target, "value": parseValue(e.Value)}
			if err := post(ctx, client, cfg.token, base+"/api/write", body); err != nil {
				log.Printf("write %s: %v", e.Target, err)
			}
		case "scenario_start":
			log.Printf("[%s] start scenario %s", e.Time.Format(time.RFC3339), e.Target)
			body := map[string]any{"name": e.Target}
			if err := post(ctx, client, cfg.token, base+"/api/scenario/start", body); err != nil {
				log.Printf("scenario %s: %v", e.Target, err)
			}
		}
	}
	log.Printf("replay complete")
}

func loadTrace(path string) ([]traceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []traceEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e traceEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch e.Action {
		case "tag_write", "scenario_start":
			if !e.Time.IsZero() {
				entries = append(entries, e)
			}
		}
	}
	return entries, scanner.Err()
}

// parseValue restores the JSON type of a recorded value string. Numbers
// are tried first so a mode word like "1" stays numeric instead of
// turning into a boolean.
func parseValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func post(ctx context.Context, client *http.Client, token, url string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.baseURL, "url", envOrDefault("PLANT_URL", "http://localhost:8080"), "plant base URL")
	flag.StringVar(&cfg.token, "token", envOrDefault("PLANT_TOKEN", ""), "bearer token for research endpoints")
	flag.Float64Var(&cfg.speed, "speed", 1, "replay speed multiplier")
	flag.BoolVar(&cfg.reset, "reset", true, "reset the plant before replaying")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
