// cmd/notifyd/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inspection-notifications/internal/api"
	"inspection-notifications/internal/auth"
	"inspection-notifications/internal/common/aws"
	"inspection-notifications/internal/common/config"
	"inspection-notifications/internal/common/database"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/common/observability"
	"inspection-notifications/internal/notify/decision"
	"inspection-notifications/internal/notify/dispatch"
	"inspection-notifications/internal/notify/live"
	"inspection-notifications/internal/notify/mailqueue"
	"inspection-notifications/internal/notify/prefs"
	"inspection-notifications/internal/notify/repo"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is the only thing we refuse to start without.
		panic(err)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting notification service", map[string]interface{}{
		"name":        cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	// The type enum and the preference schema must agree before anything is
	// dispatched.
	if err := decision.ValidateTypeMapping(); err != nil {
		log.Error("preference mapping invalid", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Error("postgres open failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer pg.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := pg.Ping(pingCtx); err != nil {
		// Unreachable backend degrades; the engine fails open per request.
		log.Warn("postgres unreachable at startup, continuing degraded", map[string]interface{}{
			"error": err.Error(),
		})
	}
	cancel()

	var redisClient *redis.Client
	if rdb, err := database.NewRedis(cfg.Database.Redis); err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, live delivery disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			redisClient = rdb.GetClient()
			defer rdb.Close()
		}
		cancel()
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	notificationRepo := repo.NewRepository(pg.GetDB(), log)
	prefStore := prefs.NewStore(pg.GetDB(), log)
	liveChannel := live.NewChannel(redisClient, log)
	scheduler := mailqueue.NewScheduler(pg.GetDB(), notificationRepo, prefStore, cfg.Email, log)
	dispatcher := dispatch.NewDispatcher(notificationRepo, scheduler, liveChannel, obs, log)

	if cfg.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Email.AWSRegion)
		if err != nil {
			log.Warn("SES unavailable, queued emails will not be drained", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			var snsService mailqueue.SNSService
			if cfg.SMS.Enabled {
				if snsClient, err := aws.NewSNSClient(ctx, cfg.SMS.AWSRegion); err == nil {
					snsService = snsClient
				} else {
					log.Warn("SNS unavailable, urgent SMS disabled", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
			mailer := mailqueue.NewMailer(pg.GetDB(), sesClient, snsService, cfg.Email, cfg.SMS, log)
			go mailer.Run(ctx)
		}
	}

	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	authCtx := auth.NewJWTContext(cfg.Auth.JWTSecret)
	handler := api.NewHandler(dispatcher, notificationRepo, prefStore, pg, log)
	handler.Register(router, authCtx)

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Millisecond,
	}

	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.HTTP.Address})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
