package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/birising/OT-honey/internal/audit"
	"github.com/birising/OT-honey/internal/gate"
	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/scenario"
	"github.com/birising/OT-honey/internal/tags"
)

// trendWindows maps the range parameter to a query window.
var trendWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"8h":  8 * time.Hour,
	"24h": 24 * time.Hour,
}

func (s *Server) identity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  serviceName,
		"facility": s.facility,
		"operator": plantOperator,
		"capacity": plantCapacity,
		"version":  serviceVersion,
		"endpoints": gin.H{
			"health":            "/health",
			"snapshot":          "/api/snapshot",
			"alarms":            "/api/alarms",
			"alarm_acknowledge": "/api/alarm/acknowledge (POST)",
			"alarm_history":     "/api/alarms/history",
			"alarm_stream":      "/api/alarms/stream (SSE)",
			"trends":            "/api/trends?range=1h|8h|24h",
			"write":             "/api/write (POST)",
			"mode":              "/api/mode (GET/POST)",
			"killswitch":        "/api/killswitch (POST)",
			"scenarios":         "/api/scenarios",
			"scenario_start":    "/api/scenario/start (POST)",
			"scenario_stop":     "/api/scenario/stop (POST)",
			"reset":             "/api/reset (POST)",
			"export_trends":     "/api/export/trends.xlsx?range=1h|8h|24h",
			"export_report":     "/api/export/report.pdf",
			"metrics":           "/metrics",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	h := s.engine.Health()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"mode":          h.Mode,
		"kill_switch":   h.KillSwitch,
		"active_alarms": h.ActiveAlarms,
		"trend_points":  h.TrendPoints,
		"uptime_s":      int64(h.Uptime.Seconds()),
	})
}

// tagInfo is the snapshot entry the HMI expects per tag.
type tagInfo struct {
	Value       tags.Value `json:"value"`
	Type        string     `json:"type"`
	Unit        string     `json:"unit"`
	Description string     `json:"description"`
}

func (s *Server) snapshot(c *gin.Context) {
	states := s.registry.Snapshot()
	out := make(map[string]tagInfo, len(states))
	for _, st := range states {
		out[st.Name] = tagInfo{
			Value:       st.Value,
			Type:        st.Type.Class(),
			Unit:        st.Unit,
			Description: st.Description,
		}
	}
	s.logOp(c, audit.ActionProbe, "/api/snapshot", "", audit.ResultAccepted, fmt.Sprintf("%d tags", len(out)))
	c.JSON(http.StatusOK, out)
}

func (s *Server) activeAlarms(c *gin.Context) {
	active := s.alarms.Active()
	s.logOp(c, audit.ActionProbe, "/api/alarms", "", audit.ResultAccepted, fmt.Sprintf("%d active", len(active)))
	c.JSON(http.StatusOK, active)
}

func (s *Server) alarmHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, s.alarms.History(limit))
}

func (s *Server) acknowledgeAlarm(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		s.logOp(c, audit.ActionAlarmAck, "", "", audit.ResultError, "missing id")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request - missing id"})
		return
	}

	alarm, err := s.alarms.Acknowledge(c.Request.Context(), req.ID)
	if err != nil {
		s.logOp(c, audit.ActionAlarmAck, req.ID, "", audit.ResultRejected, err.Error())
		c.JSON(http.StatusNotFound, gin.H{"error": "alarm not found or not active"})
		return
	}

	s.logOp(c, audit.ActionAlarmAck, req.ID, alarm.Code, audit.ResultAccepted, "")
	c.JSON(http.StatusOK, gin.H{"success": true, "alarm_id": alarm.ID})
}

func (s *Server) writeTag(c *gin.Context) {
	var req struct {
		Tag   string `json:"tag"`
		Value any    `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Tag == "" || req.Value == nil {
		s.logOp(c, audit.ActionTagWrite, req.Tag, "", audit.ResultError, "invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	value, err := s.gate.Write(req.Tag, req.Value)
	switch {
	case err == nil:
		metrics.IncTagWrite(metrics.WriteAccepted)
		s.logOp(c, audit.ActionTagWrite, req.Tag, value.String(), audit.ResultAccepted, "")
		c.JSON(http.StatusOK, gin.H{"success": true, "tag": req.Tag, "value": value})
	case errors.Is(err, gate.ErrNotWritable):
		metrics.IncTagWrite(metrics.WriteRejected)
		s.logOp(c, audit.ActionTagWrite, req.Tag, fmt.Sprint(req.Value), audit.ResultRejected, err.Error())
		c.JSON(http.StatusForbidden, gin.H{"error": "tag not in whitelist"})
	case errors.Is(err, tags.ErrNotFound):
		metrics.IncTagWrite(metrics.WriteRejected)
		s.logOp(c, audit.ActionTagWrite, req.Tag, fmt.Sprint(req.Value), audit.ResultRejected, err.Error())
		c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
	default:
		// Type mismatch or engineering limits.
		metrics.IncTagWrite(metrics.WriteRejected)
		s.logOp(c, audit.ActionTagWrite, req.Tag, fmt.Sprint(req.Value), audit.ResultRejected, err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// trendRow is the merged sample set of all tracked tags at one instant.
type trendRow struct {
	At     time.Time
	Values map[string]float64
}

// trendRows merges the per-tag series into time-ordered rows. Buckets
// are derived from the same window and instant for every tag, so the
// timestamps line up.
func (s *Server) trendRows(window time.Duration) []trendRow {
	now := s.clock.Now()
	byTime := make(map[int64]*trendRow)
	keys := make([]int64, 0, 512)

	for _, tag := range s.trends.Tags() {
		samples, err := s.trends.Query(tag, window, now)
		if err != nil {
			continue
		}
		for _, sample := range samples {
			key := sample.At.UnixNano()
			row, ok := byTime[key]
			if !ok {
				row = &trendRow{At: sample.At, Values: make(map[string]float64, 16)}
				byTime[key] = row
				keys = append(keys, key)
			}
			row.Values[tag] = sample.Value
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	rows := make([]trendRow, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, *byTime[key])
	}
	return rows
}

func (s *Server) trendData(c *gin.Context) {
	rangeName := c.DefaultQuery("range", "1h")
	window, ok := trendWindows[rangeName]
	if !ok {
		window = time.Hour
	}

	rows := s.trendRows(window)
	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		point := make(map[string]any, len(row.Values)+1)
		point["timestamp"] = row.At.Unix()
		for tag, value := range row.Values {
			point[tag] = value
		}
		data = append(data, point)
	}

	s.logOp(c, audit.ActionProbe, "/api/trends", rangeName, audit.ResultAccepted, fmt.Sprintf("%d points", len(data)))
	c.JSON(http.StatusOK, gin.H{
		"range":  rangeName,
		"points": len(data),
		"data":   data,
		"tags":   s.trends.Tags(),
	})
}

func (s *Server) getMode(c *gin.Context) {
	value, err := s.registry.Get(tags.GlobalMode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": tags.ModeName(value.AsInt())})
}

func (s *Server) setMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Mode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request - missing mode"})
		return
	}

	var mode int64
	switch strings.ToUpper(req.Mode) {
	case "AUTO":
		mode = tags.ModeAuto
	case "MANUAL":
		mode = tags.ModeManual
	case "MAINTENANCE":
		mode = tags.ModeMaintenance
	default:
		s.logOp(c, audit.ActionModeChange, tags.GlobalMode, req.Mode, audit.ResultRejected, "unknown mode")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode - must be AUTO, MANUAL, or MAINTENANCE"})
		return
	}

	if err := s.gate.SetMode(mode); err != nil {
		s.logOp(c, audit.ActionModeChange, tags.GlobalMode, req.Mode, audit.ResultError, err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := tags.ModeName(mode)
	s.logOp(c, audit.ActionModeChange, tags.GlobalMode, name, audit.ResultAccepted, "")
	c.JSON(http.StatusOK, gin.H{"success": true, "mode": name})
}

func (s *Server) killSwitch(c *gin.Context) {
	var req struct {
		Activate *bool `json:"activate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Activate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request - missing activate"})
		return
	}

	engaged := *req.Activate
	if err := s.gate.SetKillSwitch(engaged); err != nil {
		s.logOp(c, audit.ActionKillSwitch, tags.KillSwitch, strconv.FormatBool(engaged), audit.ResultError, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logOp(c, audit.ActionKillSwitch, tags.KillSwitch, strconv.FormatBool(engaged), audit.ResultAccepted, "")
	c.JSON(http.StatusOK, gin.H{"success": true, "kill_switch": engaged})
}

func (s *Server) listScenarios(c *gin.Context) {
	list := s.scenarios.List()
	infos := make([]gin.H, 0, len(list))
	for _, info := range list {
		infos = append(infos, gin.H{
			"name":        info.Name,
			"title":       info.Title,
			"description": info.Description,
			"duration_s":  int(info.Duration.Seconds()),
		})
	}

	resp := gin.H{"scenarios": infos}
	if st, ok := s.scenarios.Active(); ok {
		resp["active"] = gin.H{
			"name":        st.Name,
			"title":       st.Title,
			"started_at":  st.StartedAt,
			"ends_at":     st.EndsAt,
			"remaining_s": int(st.Remaining(s.clock.Now()).Seconds()),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) startScenario(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	st, err := s.scenarios.Start(req.Name)
	switch {
	case errors.Is(err, scenario.ErrUnknown):
		s.logOp(c, audit.ActionScenarioStart, req.Name, "", audit.ResultRejected, err.Error())
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, scenario.ErrAlreadyRunning):
		s.logOp(c, audit.ActionScenarioStart, req.Name, "", audit.ResultRejected, err.Error())
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.logOp(c, audit.ActionScenarioStart, req.Name, "", audit.ResultError, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logOp(c, audit.ActionScenarioStart, st.Name, "", audit.ResultAccepted, "")
	c.JSON(http.StatusOK, gin.H{"success": true, "scenario": st.Name, "ends_at": st.EndsAt})
}

func (s *Server) stopScenario(c *gin.Context) {
	st, err := s.scenarios.Stop()
	if err != nil {
		s.logOp(c, audit.ActionScenarioStop, "", "", audit.ResultRejected, err.Error())
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	s.logOp(c, audit.ActionScenarioStop, st.Name, "", audit.ResultAccepted, "")
	c.JSON(http.StatusOK, gin.H{"success": true, "scenario": st.Name})
}

func (s *Server) reset(c *gin.Context) {
	s.engine.Reset(c.Request.Context())
	s.logOp(c, audit.ActionReset, "", "", audit.ResultAccepted, "")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
