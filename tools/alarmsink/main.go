// alarmsink is a local receiver for alarm webhook notifications. It
// prints every event it gets and keeps simple counters, with optional
// latency and failure injection for exercising the dispatcher under
// bad network conditions.
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

type sink struct {
	start    time.Time
	latency  time.Duration
	failRate float64

	mu         sync.Mutex
	total      int64
	failed     int64
	byEvent    map[string]int64
	bySeverity map[string]int64
}

type alarmEnvelope struct {
	Event    string    `json:"event"`
	Facility string    `json:"facility"`
	At       time.Time `json:"at"`
	Alarm    struct {
		Code     string `json:"code"`
		Tag      string `json:"tag"`
		Severity string `json:"severity"`
		Text     string `json:"text"`
		Status   string `json:"status"`
	} `json:"alarm"`
}

func main() {
	addr := getenvDefault("ALARMSINK_ADDR", ":9090")
	latencyMs := getenvIntDefault("ALARMSINK_LATENCY_MS", 0)
	failRate := getenvFloatDefault("ALARMSINK_FAIL_RATE", 0)

	s := &sink{
		start:      time.Now().UTC(),
		latency:    time.Duration(latencyMs) * time.Millisecond,
		failRate:   failRate,
		byEvent:    make(map[string]int64),
		bySeverity: make(map[string]int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/alarms", s.handleAlarm)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	log.Printf("alarm sink listening on %s (latency=%s fail-rate=%.2f)", addr, s.latency, s.failRate)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (s *sink) handleAlarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	if s.failRate > 0 && rand.Float64() < s.failRate {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return
	}

	var env alarmEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.total++
	s.byEvent[env.Event]++
	s.bySeverity[env.Alarm.Severity]++
	s.mu.Unlock()

	log.Printf("[%s] %s %s severity=%s status=%s %q",
		env.Facility, env.Event, env.Alarm.Code, env.Alarm.Severity, env.Alarm.Status, env.Alarm.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (s *sink) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *sink) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	stats := map[string]any{
		"uptime_seconds": int(time.Since(s.start).Seconds()),
		"received":       s.total,
		"failed":         s.failed,
		"by_event":       s.byEvent,
		"by_severity":    s.bySeverity,
	}
	payload, err := json.Marshal(stats)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
