package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/javaboys/hunty/interview/adapters/mongo"
	"github.com/javaboys/hunty/interview/adapters/store"
	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/api"
	"github.com/javaboys/hunty/interview/internal/auth"
	"github.com/javaboys/hunty/interview/internal/config"
	"github.com/javaboys/hunty/interview/internal/websocket"
	"github.com/javaboys/hunty/interview/usecase"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	logger, err := config.NewLogger(cfg.Observability)
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("Falling back to production logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Mock backend failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	issuer, err := auth.NewIssuer(cfg.Backend.JWTSecret)
	if err != nil {
		return err
	}

	repo, closeRepo, err := meetingRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	hub := websocket.NewHub(issuer, websocket.DefaultConfig(cfg.Backend.VideoDir), logger)

	meetings := usecase.NewMeetingService(repo, issuer, logger,
		usecase.WithEndedHook(func(m *entities.Meeting, reason string) {
			if m.InterviewID == nil {
				return
			}
			n := hub.EndInterview(*m.InterviewID, reason)
			logger.Info("Meeting ended",
				zap.String("code", m.Code),
				zap.String("reason", reason),
				zap.Int("notifiedSockets", n))
		}),
	)
	sweeper := websocket.NewExpirySweeper(meetings, websocket.DefaultSweepInterval, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, meetings, hub, logger)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Mock backend started",
			zap.String("port", cfg.Backend.Port),
			zap.String("videoDir", cfg.Backend.VideoDir),
			zap.String("meetingRepo", cfg.Backend.Repo))
		if err := e.Start(":" + cfg.Backend.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// meetingRepository selects the meeting store. The in-memory one is seeded
// with the demo meeting "abc".
func meetingRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.MeetingRepository, func(), error) {
	if cfg.Backend.Repo == config.StoreMongo {
		client, err := mongo.NewClient(ctx, mongo.Config{
			URI:      cfg.Store.MongoURI,
			Database: cfg.Store.MongoDatabase,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := mongo.NewMeetingRepository(client.Database, logger)
		if err := seedMeeting(ctx, repo); err != nil {
			client.Close(context.Background())
			return nil, nil, err
		}
		return repo, func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Warn("Failed to close MongoDB client", zap.Error(err))
			}
		}, nil
	}

	repo := store.NewMemoryMeetingRepository()
	if err := seedMeeting(ctx, repo); err != nil {
		return nil, nil, err
	}
	return repo, func() {}, nil
}

// seedMeeting creates the demo meeting unless it already exists.
func seedMeeting(ctx context.Context, repo repositories.MeetingRepository) error {
	_, err := repo.GetByCode(ctx, "abc")
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrMeetingNotFound) {
		return err
	}
	return repo.Save(ctx, &entities.Meeting{
		Code:          "abc",
		CandidateName: "Candidate",
		Greeting:      "Welcome to your interview!",
		Status:        entities.SessionStatusNotStarted,
	})
}
