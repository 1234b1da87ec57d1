// Command feedtail is a terminal tail of a running feedserver.
// Mirrors the live and ghost series locally and prints one line per
// live-bar change.
//
// Config (flags, or env):
//
//	-url    FEEDTAIL_URL  feed WebSocket (default: "ws://localhost:8080/ws")
//	-ghost                also print the ghost queue on every rebuild
//	-log-level            log level (default: "warn")
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"candlefeed/internal/feedclient"
	"candlefeed/internal/gateway"
	"candlefeed/internal/logger"
	"candlefeed/internal/model"
	"candlefeed/internal/overlay"
	"candlefeed/internal/surface"
)

func main() {
	url := flag.String("url", getEnv("FEEDTAIL_URL", "ws://localhost:8080/ws"), "feed websocket url")
	showGhost := flag.Bool("ghost", false, "print the ghost queue on every rebuild")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log := logger.Init("feedtail", logger.ParseLevel(*level))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := feedclient.New(feedclient.Config{URL: *url}, log)
	if err != nil {
		log.Error("bad url", "error", err)
		os.Exit(1)
	}
	client.OnGap = func(from, to int64) {
		fmt.Fprintf(os.Stderr, "gap: missed envelopes %d..%d\n", from+1, to-1)
	}

	bars := surface.NewStore(gateway.ChannelBars, 0, log)
	ghosts := surface.NewStore(gateway.ChannelGhost, 0, log)

	envs := make(chan gateway.Envelope, 256)
	go client.Start(ctx, envs)

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-envs:
			if err := feedclient.Apply(env, bars, ghosts); err != nil {
				log.Warn("apply", "error", err)
				continue
			}
			switch env.Channel {
			case gateway.ChannelBars:
				if last, ok := bars.Last(); ok {
					fmt.Println(formatBar(env.Seq, last))
				}
			case gateway.ChannelGhost:
				if *showGhost {
					fmt.Println(formatGhosts(ghosts.Bars()))
				}
			}
		}
	}
}

func formatBar(seq int64, b model.Bar) string {
	return fmt.Sprintf("#%-6d t=%d O=%s H=%s L=%s C=%s",
		seq, b.Time,
		overlay.FormatPrice(b.Open), overlay.FormatPrice(b.High),
		overlay.FormatPrice(b.Low), overlay.FormatPrice(b.Close))
}

func formatGhosts(q []model.Bar) string {
	parts := make([]string, len(q))
	for i, b := range q {
		parts[i] = overlay.FormatPrice(b.Close)
	}
	return "ghost: " + strings.Join(parts, " ")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
