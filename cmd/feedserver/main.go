// Command feedserver runs the live animated candle feed: a synthetic bar
// every interval, eased micro-tick animation of the live bar, a ghost queue
// of predicted bars and a price overlay, pushed to chart clients over
// WebSocket and optionally mirrored to Redis.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candlefeed/config"
	"candlefeed/internal/feed/animator"
	"candlefeed/internal/feed/driver"
	"candlefeed/internal/feed/ghost"
	"candlefeed/internal/feed/live"
	"candlefeed/internal/feed/ohlcgen"
	"candlefeed/internal/gateway"
	"candlefeed/internal/logger"
	"candlefeed/internal/loop"
	"candlefeed/internal/metrics"
	"candlefeed/internal/model"
	"candlefeed/internal/overlay"
	redisstore "candlefeed/internal/store/redis"
	"candlefeed/internal/surface"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logger.Init("feedserver", logger.ParseLevel("")).Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.Init("feedserver", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithFeedID(ctx, logger.NewFeedID(cfg.Symbol, time.Now()))
	log = logger.FromContext(ctx, log)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Info("starting",
		"symbol", cfg.Symbol,
		"timeframe", cfg.Timeframe,
		"interval", cfg.Interval(),
		"seed", seed,
		"animate_flips", cfg.FlipAnimation())

	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus(3 * cfg.Interval())
	health.SetRedisEnabled(cfg.RedisEnabled())

	// ── Transport ──
	hub := gateway.NewHub(gateway.Config{HistoryBars: cfg.HistoryBars}, log)
	hub.OnClients = func(n int) {
		m.WSClients.Set(float64(n))
		health.SetWSClients(n)
	}
	hub.OnDrop = func(n int) { m.WSDroppedSends.Add(float64(n)) }

	liveOut := []surface.Series{hub.Series(gateway.ChannelBars)}
	ghostOut := []surface.Series{hub.Series(gateway.ChannelGhost)}
	sinks := []func(overlay.DrawList){hub.PublishOverlay}

	if cfg.RedisEnabled() {
		pcfg := redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Symbol:   cfg.Symbol,
		}
		rdb, err := redisstore.Dial(ctx, pcfg)
		if err != nil {
			log.Warn("redis not reachable yet, mirror will retry", "error", err)
		}
		defer rdb.Close()
		health.CheckRedis(ctx, rdb)
		health.StartLivenessChecker(ctx, rdb, 5*time.Second)

		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
			log.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
		}

		pub := redisstore.NewPublisher(rdb, cb, pcfg, log)
		pub.OnPublish = func(d time.Duration) { m.RedisPublishDur.Observe(d.Seconds()) }
		pub.OnError = func(error) { m.RedisPublishErrors.Inc() }
		pub.OnDrop = func() { m.RedisPublishErrors.Inc() }
		go pub.Run(ctx)

		liveOut = append(liveOut, pub.Series(redisstore.ChannelBars))
		ghostOut = append(ghostOut, pub.Series(redisstore.ChannelGhost))
		sinks = append(sinks, pub.PublishOverlay)
		log.Info("redis mirror enabled", "addr", cfg.RedisAddr)
	}

	// ── Chart surface ──
	liveStore := surface.NewStore("live", cfg.HistoryBars, log)
	ghostStore := surface.NewStore("ghost", cfg.GhostQueueLength, log)
	chart := surface.NewChart(liveStore, ghostStore, cfg.CanvasWidth, cfg.CanvasHeight, cfg.PixelRatio)
	recorder := overlay.NewRecorder(chart.PixelRatio, sinks...)

	liveSeries := surface.Tee(append([]surface.Series{liveStore}, liveOut...)...)
	ghostSeries := surface.Tee(append([]surface.Series{ghostStore}, ghostOut...)...)

	// ── Feed ──
	lp := loop.New(cfg.FrameInterval(), log)

	genCfg := ohlcgen.Config{
		Timeframe:    cfg.Timeframe,
		NoiseEpsilon: cfg.NoiseEpsilon,
		WickEpsilon:  cfg.WickEpsilon,
	}
	barGen := ohlcgen.New(genCfg, rand.New(rand.NewSource(seed)))
	ghostGen := ohlcgen.New(genCfg, rand.New(rand.NewSource(seed+1)))

	predictor := ghost.New(ghostGen, cfg.GhostQueueLength, ghostSeries)
	predictor.OnRegenerate = func([]model.Bar) { m.GhostRegenerations.Inc() }

	anim := animator.New(lp, animator.Config{
		TickDuration: cfg.TickDuration(),
		Pause:        cfg.InterTickPause(),
	}, log)
	anim.OnDegenerate = func(float64) { m.DegenerateSteps.Inc() }
	anim.OnCancel = func() { m.AnimationCancels.Inc() }

	ctrl := live.New(live.Config{
		Timeframe: cfg.Timeframe,
		Series:    liveSeries,
		Ghosts:    predictor,
		Animator:  anim,
		Canvas:    recorder,
		View:      chart,
		Logger:    log,
	})
	ctrl.Hooks = live.Hooks{
		OnOpen: func(first model.Bar) {
			m.UpdateKinds.WithLabelValues("open").Inc()
			m.FeedState.Set(1)
			m.LiveBarTime.Set(float64(first.Time))
			health.SetState(live.StateOpen.String())
			health.SetLastBar(first.Time)
		},
		OnFlip: func(_, opened model.Bar) {
			m.UpdateKinds.WithLabelValues("flip").Inc()
			m.LiveBarTime.Set(float64(opened.Time))
			health.SetLastBar(opened.Time)
		},
		OnTick: func(model.Update) { m.UpdateKinds.WithLabelValues("tick").Inc() },
		OnStep: func(model.Bar) { m.AnimationSteps.Inc() },
		OnReject: func(_ model.Update, err error) {
			m.Rejected.WithLabelValues(rejectReason(err)).Inc()
		},
		OnRedraw: func(drawn bool) {
			if drawn {
				m.OverlayDraws.WithLabelValues("drawn").Inc()
			} else {
				m.OverlayDraws.WithLabelValues("skipped").Inc()
			}
		},
	}

	drv := driver.New(driver.Config{
		Interval:       cfg.Interval(),
		MicroTickCount: cfg.MicroTickCount,
		StartPrice:     cfg.StartPrice,
		AnimateFlips:   cfg.FlipAnimation(),
	}, lp, barGen, ctrl, liveSeries, log)
	drv.OnBar = func(model.Update) { m.BarsTotal.Inc() }

	hub.OnResize = func(w, h, dpr float64) {
		lp.Post(func() { ctrl.Resize(w, h, dpr) })
	}

	// ── Servers ──
	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Info("feed listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("feed server error", "error", err)
			cancel()
		}
	}()

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, nil, log)
	metricsSrv.Start()

	// The loop runs until teardown, independent of the signal context, so
	// shutdown work can still be executed on it.
	go lp.Run(context.Background())
	lp.Call(func() {
		ctrl.Redraw()
		drv.Start()
	})

	<-ctx.Done()
	log.Info("shutting down")

	lp.Call(func() {
		drv.Stop()
		ctrl.Close()
	})
	lp.Close()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Info("stopped", "last_bar_time", drv.Last().Time)
}
