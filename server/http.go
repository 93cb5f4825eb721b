package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vodforge/config"
	"vodforge/constant"
	jobHandler "vodforge/handler"
	"vodforge/pkg/execx"
	"vodforge/pkg/pubsub"
	"vodforge/pkg/rabbitmq"
	"vodforge/pkg/storage"
	"vodforge/repository"
	"vodforge/service"
	"vodforge/upload"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)
	store := storage.NewMinioStore(cfg.Storage, cfg.MinIOBucket)
	broker := pubsub.NewRedisBroker(cfg.Events, 16)
	publisher := rabbitmq.NewPublisher(conn, cfg.Queue)
	runner := execx.NewCommandRunner()

	conversionService := service.NewConversionService(repo, store, broker, cfg.Media, runner)
	thumbnailService := service.NewThumbnailService(repo, store, cfg.Media, runner)
	qualityService := service.NewQualityService(repo, store)

	serviceDeps := jobHandler.ServiceDependencies{
		ConversionService: conversionService,
		ThumbnailService:  thumbnailService,
	}

	consumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.JobHandler)
	go func() {
		if err := consumer.Consume(ctx, serviceDeps); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("processing consumer error")
		}
	}()

	reassembler := upload.NewReassembler(cfg.Media.SpoolDir, repo, store, publisher, broker)
	go reassembler.RunJanitor(ctx, time.Hour, cfg.Media.SessionTTL)

	r := gin.Default()
	addHealth(r)
	addRoutes(r, routeDeps{
		reassembler: reassembler,
		quality:     qualityService,
		store:       store,
		broker:      broker,
	})

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
