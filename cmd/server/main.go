package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"interview-scheduler/internal/app"
	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/booking"
	"interview-scheduler/internal/calendarexport"
	"interview-scheduler/internal/config"
	"interview-scheduler/internal/followup"
	"interview-scheduler/internal/invitation"
	"interview-scheduler/internal/jobs"
	"interview-scheduler/internal/meeting"
	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/notify"
	"interview-scheduler/internal/server"
	"interview-scheduler/internal/slots"
	"interview-scheduler/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := metrics.New()
	validate := apperr.NewValidator()

	slotRepo := store.NewSlotRepository(pool)
	bookingRepo := store.NewBookingRepository(pool)
	invitationRepo := store.NewInvitationRepository(pool)
	directoryRepo := store.NewDirectoryRepository(pool)
	credentialRepo := store.NewCredentialRepository(pool)

	invitations := invitation.NewService(invitationRepo, bookingRepo, slotRepo, directoryRepo,
		cfg.Invitation.TTL, cfg.FrontendURL, m, logger)

	oauthCfg := app.NewOAuthConfig(cfg.Google)
	var strategies []meeting.Provider
	if oauthCfg != nil {
		var google meeting.Provider = meeting.NewGoogleProvider(oauthCfg, credentialRepo,
			cfg.Google.CalendarID, cfg.Google.Timeout, logger)
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer func() { _ = rdb.Close() }()
			if err := rdb.Ping(ctx).Err(); err != nil {
				logger.Warn("redis unreachable, meeting links will not be cached", zap.Error(err))
			}
			google = meeting.NewCachedProvider(google, meeting.NewRedisCache(rdb), cfg.Meeting.CacheTTL, logger)
		}
		strategies = append(strategies, google)
	} else {
		logger.Info("google calendar not configured, using ad-hoc meeting rooms only")
	}
	meetings := meeting.NewChain(
		meeting.NewAdHocProvider(cfg.Meeting.RoomBaseURL, cfg.Meeting.RoomPrefix, cfg.Meeting.RoomSecret),
		m, logger, strategies...,
	)

	renderer, err := notify.NewRenderer()
	if err != nil {
		return err
	}
	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.Notify.Transport == "kafka" {
		ks, err := notify.NewKafkaSender(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, logger)
		if err != nil {
			return err
		}
		defer func() { _ = ks.Close() }()
		sender = ks
	}

	processor := followup.NewProcessor(followup.Deps{
		Bookings:  bookingRepo,
		Slots:     slotRepo,
		Directory: directoryRepo,
		Inviter:   invitations,
		Meetings:  meetings,
		Exporter:  calendarexport.NewGenerator("", cfg.Notify.From, logger),
		Renderer:  renderer,
		Sender:    sender,
	}, cfg.Notify.From, m, logger)

	queue := jobs.NewQueue("followup", processor.Handle, jobs.Config{
		Workers:    cfg.Followup.Workers,
		MaxRetries: cfg.Followup.Retries,
		RetryDelay: cfg.Followup.RetryDelay,
		Logger:     logger,
	})
	queue.Start(context.WithoutCancel(ctx))
	defer queue.Stop()

	engine := booking.NewEngine(bookingRepo, slotRepo, directoryRepo, invitations,
		followup.NewDispatcher(queue, m, logger), validate, m, logger)

	stateSecret := cfg.Auth.JWTSecret
	if stateSecret == "" {
		stateSecret = cfg.Google.ClientSecret
	}
	application := &app.App{
		Slots:       slots.NewManager(slotRepo, bookingRepo, validate, logger),
		Bookings:    engine,
		Invitations: invitations,
		Credentials: credentialRepo,
		StateSecret: []byte(stateSecret),
		DB:          pool,
		Logger:      logger,
	}
	if oauthCfg != nil {
		application.OAuth = oauthCfg
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), app.RequestLogger(logger), m.GinMiddleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	application.Register(router, application.AuthMiddleware(cfg.Auth))

	return server.Run(ctx, router, cfg.Port, logger)
}
