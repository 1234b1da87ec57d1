package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the candle feed.
type Metrics struct {
	BarsTotal   prometheus.Counter
	UpdateKinds *prometheus.CounterVec // labels: kind=open|tick|flip
	Rejected    *prometheus.CounterVec // labels: reason
	LiveBarTime prometheus.Gauge
	FeedState   prometheus.Gauge // 0=uninitialized, 1=open

	// Animation
	AnimationSteps   prometheus.Counter
	AnimationCancels prometheus.Counter
	DegenerateSteps  prometheus.Counter

	// Ghost queue + overlay
	GhostRegenerations prometheus.Counter
	OverlayDraws       *prometheus.CounterVec // labels: result=drawn|skipped

	// Gateway
	WSClients      prometheus.Gauge
	WSDroppedSends prometheus.Counter

	// Redis mirror
	RedisPublishDur          prometheus.Histogram
	RedisPublishErrors       prometheus.Counter
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_bars_total",
			Help: "Bars produced by the realtime driver",
		}),
		UpdateKinds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlefeed_updates_total",
			Help: "Accepted live-candle updates by kind",
		}, []string{"kind"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlefeed_rejected_updates_total",
			Help: "Updates rejected by the live candle controller",
		}, []string{"reason"}),
		LiveBarTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candlefeed_live_bar_time_seconds",
			Help: "Open time of the current live bar",
		}),
		FeedState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candlefeed_state",
			Help: "Live candle state (0=uninitialized, 1=open)",
		}),

		AnimationSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_animation_steps_total",
			Help: "Intermediate close prices applied to the live bar",
		}),
		AnimationCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_animation_cancels_total",
			Help: "Micro-tick runs cancelled before completion",
		}),
		DegenerateSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_degenerate_steps_total",
			Help: "Non-finite animation targets or samples skipped",
		}),

		GhostRegenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_ghost_regenerations_total",
			Help: "Ghost queue rebuilds",
		}),
		OverlayDraws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlefeed_overlay_draws_total",
			Help: "Overlay redraws by result",
		}, []string{"result"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candlefeed_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_ws_dropped_sends_total",
			Help: "Envelopes dropped because a client send buffer was full",
		}),

		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candlefeed_redis_publish_duration_seconds",
			Help:    "Redis mirror publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_redis_publish_errors_total",
			Help: "Redis mirror publishes that failed or were short-circuited",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candlefeed_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.BarsTotal,
		m.UpdateKinds,
		m.Rejected,
		m.LiveBarTime,
		m.FeedState,
		m.AnimationSteps,
		m.AnimationCancels,
		m.DegenerateSteps,
		m.GhostRegenerations,
		m.OverlayDraws,
		m.WSClients,
		m.WSDroppedSends,
		m.RedisPublishDur,
		m.RedisPublishErrors,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// HealthStatus represents the feed's health.
type HealthStatus struct {
	mu sync.RWMutex

	State        string    `json:"state"`
	LastBarTime  int64     `json:"last_bar_time"`
	LastBarAt    time.Time `json:"last_bar_at"`
	WSClients    int       `json:"ws_clients"`
	RedisEnabled bool      `json:"redis_enabled"`

	// Liveness probe results
	RedisConnected bool      `json:"redis_connected"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`

	// StaleAfter marks the feed stalled when no bar arrived for this long.
	// Zero disables the check.
	StaleAfter time.Duration

	now func() time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(staleAfter time.Duration) *HealthStatus {
	return &HealthStatus{
		State:      "uninitialized",
		StaleAfter: staleAfter,
		StartedAt:  time.Now(),
		now:        time.Now,
	}
}

func (h *HealthStatus) SetState(s string) {
	h.mu.Lock()
	h.State = s
	h.mu.Unlock()
}

// SetLastBar records the open time of the newest live bar.
func (h *HealthStatus) SetLastBar(barTime int64) {
	h.mu.Lock()
	h.LastBarTime = barTime
	h.LastBarAt = h.now()
	h.mu.Unlock()
}

func (h *HealthStatus) SetWSClients(n int) {
	h.mu.Lock()
	h.WSClients = n
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	if rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(probeCtx, rdb)
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	barAge := ""
	stale := false
	if !h.LastBarAt.IsZero() {
		age := h.now().Sub(h.LastBarAt)
		barAge = age.Round(time.Millisecond).String()
		stale = h.StaleAfter > 0 && age > h.StaleAfter
	}

	switch {
	case h.State != "open":
		overallStatus = "starting"
		httpCode = http.StatusServiceUnavailable
	case stale:
		overallStatus = "stalled"
		httpCode = http.StatusServiceUnavailable
	case h.RedisEnabled && !h.RedisConnected:
		// the websocket feed still works without the mirror
		overallStatus = "degraded"
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		State          string  `json:"state"`
		LastBarTime    int64   `json:"last_bar_time"`
		BarAge         string  `json:"bar_age"`
		WSClients      int     `json:"ws_clients"`
		RedisEnabled   bool    `json:"redis_enabled"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		LastCheckAt    string  `json:"last_check_at,omitempty"`
	}{
		Status:         overallStatus,
		Uptime:         h.now().Sub(h.StartedAt).Round(time.Second).String(),
		State:          h.State,
		LastBarTime:    h.LastBarTime,
		BarAge:         barAge,
		WSClients:      h.WSClients,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
	}
	if !h.LastCheckAt.IsZero() {
		status.LastCheckAt = h.LastCheckAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
	log    *slog.Logger
}

// NewServer creates a metrics and health server. A nil gatherer serves the
// Prometheus default registry.
func NewServer(addr string, health *HealthStatus, g prometheus.Gatherer, log *slog.Logger) *Server {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		health: health,
		addr:   addr,
		log:    log,
		srv: &http.Server{
			Addr:    addr,
			Handler: NewMux(health, g),
		},
	}
}

// NewMux returns the handler tree served by Server.
func NewMux(health *HealthStatus, g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
