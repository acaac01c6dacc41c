package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/matinee/ai/tracker"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/version"
)

// HandleHealth answers liveness probes. Kept cheap and dependency-free so it
// stays truthful while the rest of the server struggles.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cacheSize := 0
	if s.cache != nil {
		cacheSize = s.cache.Len()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          stateString(s.getState()),
		"version":         version.Get().Version,
		"tmdb_configured": s.tmdbConfigured,
		"ai_configured":   s.aiConfigured,
		"cache_size":      cacheSize,
		"clients":         s.clientCount(),
	})
}

// MemoryStatus is system memory usage in the status payload.
type MemoryStatus struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// CPUStatus is processor usage in the status payload.
type CPUStatus struct {
	Cores       int     `json:"cores"`
	UsedPercent float64 `json:"used_percent"`
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Status        string              `json:"status"`
	Version       string              `json:"version"`
	Commit        string              `json:"commit"`
	BuildTime     string              `json:"build_time"`
	GoVersion     string              `json:"go_version"`
	Platform      string              `json:"platform"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Goroutines    int                 `json:"goroutines"`
	Clients       int                 `json:"clients"`
	CacheSize     int                 `json:"cache_size"`
	Memory        MemoryStatus        `json:"memory"`
	CPU           CPUStatus           `json:"cpu"`
	AI            *tracker.UsageStats `json:"ai,omitempty"`
}

// HandleStatus reports build and runtime detail for operators: version info,
// uptime, goroutines, and host memory/CPU readings.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	info := version.Get()
	status := StatusResponse{
		Status:        stateString(s.getState()),
		Version:       info.Version,
		Commit:        info.CommitHash,
		BuildTime:     info.BuildTime,
		GoVersion:     info.GoVersion,
		Platform:      info.Platform,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Clients:       s.clientCount(),
		CPU:           CPUStatus{Cores: runtime.NumCPU()},
	}
	if s.cache != nil {
		status.CacheSize = s.cache.Len()
	}
	if s.usage != nil {
		status.AI = s.usage.Snapshot()
	}

	// Host readings are best effort; a probe failure degrades the payload,
	// never the endpoint.
	if vm, err := mem.VirtualMemory(); err == nil {
		status.Memory = MemoryStatus{
			TotalMB:     vm.Total / 1024 / 1024,
			UsedMB:      vm.Used / 1024 / 1024,
			UsedPercent: vm.UsedPercent,
		}
	} else {
		s.logger.Debugw("Memory probe failed", logger.FieldError, err)
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status.CPU.UsedPercent = percents[0]
	} else if err != nil {
		s.logger.Debugw("CPU probe failed", logger.FieldError, err)
	}

	writeJSON(w, http.StatusOK, status)
}

// recommendRequest is the body of the synchronous recommendation endpoints.
type recommendRequest struct {
	URL         string `json:"url,omitempty"`
	Username    string `json:"username,omitempty"`
	Preferences string `json:"preferences,omitempty"`
	Explain     bool   `json:"explain,omitempty"`
}

// HandleRecommend runs a list recommendation to completion and returns the
// result as one JSON document. Clients that want progress use the stream
// variant instead.
func (s *Server) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body recommendRequest
	if !readJSON(w, r, &body) {
		return
	}

	req := runRequest{
		Kind:        runRecommend,
		URL:         body.URL,
		Preferences: body.Preferences,
		Explain:     body.Explain,
	}
	s.runJSON(w, r, req)
}

// HandleProfileRecommend runs a profile recommendation to completion.
func (s *Server) HandleProfileRecommend(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body recommendRequest
	if !readJSON(w, r, &body) {
		return
	}

	req := runRequest{
		Kind:        runProfileRecommend,
		Username:    body.Username,
		Preferences: body.Preferences,
		Explain:     body.Explain,
	}
	s.runJSON(w, r, req)
}

// runJSON validates and executes a run, writing the terminal payload as the
// response body.
func (s *Server) runJSON(w http.ResponseWriter, r *http.Request, req runRequest) {
	if err := s.validateRun(&req); err != nil {
		writeRunError(w, s.logger, err)
		return
	}

	ctx, cancel := s.runContext(r)
	defer cancel()

	result, err := s.executeRun(ctx, req, nil)
	if err != nil {
		if ctx.Err() != nil {
			// Client hung up or the server is draining; nobody is reading.
			return
		}
		writeRunError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
