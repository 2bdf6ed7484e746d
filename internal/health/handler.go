package health

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	MemorySysMB   uint64 `json:"memory_sys_mb"`
	NumGC         uint32 `json:"num_gc"`
}

type RequestStats struct {
	TotalRequests     uint64 `json:"total_requests"`
	ActiveConnections int64  `json:"active_connections"`
}

type Response struct {
	Status   Status       `json:"status"`
	Version  string       `json:"version"`
	UptimeS  int64        `json:"uptime_s"`
	Runtime  RuntimeStats `json:"runtime"`
	Requests RequestStats `json:"requests"`
}

type Handler struct {
	version string
	started time.Time

	totalRequests     atomic.Uint64
	activeConnections atomic.Int64
}

func NewHandler(version string) *Handler {
	return &Handler{version: version, started: time.Now()}
}

func (h *Handler) IncrementRequests()    { h.totalRequests.Add(1) }
func (h *Handler) IncrementConnections() { h.activeConnections.Add(1) }
func (h *Handler) DecrementConnections() { h.activeConnections.Add(-1) }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.HandleHealth)
}

func (h *Handler) HandleHealth(c echo.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(http.StatusOK, Response{
		Status:  StatusHealthy,
		Version: h.version,
		UptimeS: int64(time.Since(h.started).Seconds()),
		Runtime: RuntimeStats{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: mem.Alloc / 1024 / 1024,
			MemorySysMB:   mem.Sys / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
		Requests: RequestStats{
			TotalRequests:     h.totalRequests.Load(),
			ActiveConnections: h.activeConnections.Load(),
		},
	})
}
