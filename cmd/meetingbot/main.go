package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/voxnotes/meetingbot/pkg/audio"
	"github.com/voxnotes/meetingbot/pkg/bot"
	"github.com/voxnotes/meetingbot/pkg/config"
	"github.com/voxnotes/meetingbot/pkg/log"
	"github.com/voxnotes/meetingbot/pkg/server"
)

const subscriberIdleTimeout = 10 * time.Minute

func main() {
	// Local overrides; absence is not an error.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	log.Init(cfg.LogLevel)
	log.Info("Starting meetingbot...")

	audioBus := audio.NewBus()
	orchestrator := bot.NewOrchestrator(cfg, audioBus, bot.NewTimerScheduler())

	wsServer := server.NewWebSocketServer(audioBus, cfg)
	httpServer := server.NewHTTPServer(orchestrator, wsServer)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpServer,
	}

	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Sweep subscribers whose connections died without unsubscribing.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 5m", func() {
		if removed := audioBus.CleanupInactiveSubscribers(subscriberIdleTimeout); removed > 0 {
			log.Infof("Cleaned up %d inactive audio subscribers", removed)
		}
	}); err != nil {
		log.Fatalf("Failed to register subscriber sweep: %v", err)
	}
	sweeper.Start()

	waitForShutdown(srv, orchestrator, wsServer, audioBus, sweeper)
}

func waitForShutdown(srv *http.Server, orchestrator *bot.Orchestrator, wsServer *server.WebSocketServer, audioBus *audio.Bus, sweeper *cron.Cron) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweeper.Stop()

	// Leave meetings before cutting the streams so clients receive the
	// tail of the audio.
	orchestrator.Shutdown()
	wsServer.CloseAll()
	audioBus.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Error during HTTP server shutdown: %v", err)
	} else {
		log.Info("HTTP server shut down successfully")
	}

	log.Info("Server shutdown complete.")
}
