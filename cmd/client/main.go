package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/javaboys/hunty/interview/adapters/camera"
	"github.com/javaboys/hunty/interview/adapters/meetingapi"
	"github.com/javaboys/hunty/interview/adapters/microphone"
	"github.com/javaboys/hunty/interview/adapters/mongo"
	"github.com/javaboys/hunty/interview/adapters/speaker"
	"github.com/javaboys/hunty/interview/adapters/store"
	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/capture"
	"github.com/javaboys/hunty/interview/internal/config"
	"github.com/javaboys/hunty/interview/internal/events"
	"github.com/javaboys/hunty/interview/internal/playback"
	"github.com/javaboys/hunty/interview/internal/voice"
	"github.com/javaboys/hunty/interview/usecase"
)

const statusInterval = time.Second

// errSessionOver stops the client once the session is back in the lobby.
var errSessionOver = errors.New("session is over")

func main() {
	cfg := config.Load()

	code := flag.String("code", cfg.Client.MeetingCode, "meeting code to join")
	backend := flag.String("backend", cfg.Client.BackendURL, "interview backend base url")
	testSound := flag.Bool("test-sound", false, "play a test tone before joining")
	healthOnly := flag.Bool("health", false, "check backend health and exit")
	flag.Parse()

	cfg.Client.MeetingCode = *code
	cfg.Client.BackendURL = *backend

	logger, err := config.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := meetingapi.NewClient(meetingapi.Config{BaseURL: cfg.Client.BackendURL}, logger)
	if err != nil {
		logger.Fatal("Invalid backend url", zap.Error(err))
	}

	if *healthOnly {
		if err := api.Health(ctx); err != nil {
			logger.Fatal("Backend unhealthy", zap.Error(err))
		}
		logger.Info("Backend healthy", zap.String("backend", cfg.Client.BackendURL))
		return
	}

	if err := run(ctx, cfg, api, *testSound, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Client failed", zap.Error(err))
	}
	logger.Info("Client exited")
}

func run(ctx context.Context, cfg *config.Config, api *meetingapi.Client, testSound bool, logger *zap.Logger) error {
	sessionStore, closeStore, err := sessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher := events.New(&events.Config{
		Brokers:         cfg.Kafka.Brokers,
		TranscriptTopic: cfg.Kafka.TranscriptTopic,
		LifecycleTopic:  cfg.Kafka.LifecycleTopic,
		ClientID:        "hunty-client",
		Enabled:         cfg.Kafka.Enabled,
	}, logger)
	defer publisher.Close()

	queue := playback.NewQueue(speaker.NewOutput(speaker.Config{}, logger), logger)
	ctrl := usecase.NewSessionController(api, sessionStore, queue, logger,
		usecase.WithPublisher(publisher),
		usecase.WithCapture(cfg.Capture.MicEnabled, cfg.Capture.CamEnabled),
	)
	defer ctrl.Close()

	voiceCfg := voice.DefaultConfig(cfg.Client.BackendURL)
	voiceCfg.MaxRetries = cfg.Voice.MaxRetries
	voiceCfg.BaseDelay = cfg.Voice.BaseDelay
	session := voice.New(voiceCfg, queue, ctrl, logger)

	mic := capture.NewAudioChunker(
		microphone.NewDevice(microphone.Config{}, logger),
		session, capture.DefaultAudioConfig(), logger,
		capture.WithOnStopped(ctrl.OnMicStopped))
	cam := capture.NewVideoChunker(
		camera.NewDevice(camera.Config{
			Path:        cfg.Capture.FFmpegPath,
			InputFormat: cfg.Capture.CameraFormat,
			Device:      cfg.Capture.CameraDevice,
		}, logger),
		voice.NewVideoDialer(cfg.Client.BackendURL, logger),
		capture.VideoConfig{}, logger,
		capture.WithOnStopped(ctrl.OnCameraStopped))
	ctrl.Attach(session, mic, cam)

	if err := api.Health(ctx); err != nil {
		logger.Warn("Backend health check failed", zap.Error(err))
	}

	if testSound {
		if err := ctrl.PlayTestSound(ctx); err != nil {
			logger.Warn("Failed to play test sound", zap.Error(err))
		}
	}

	if err := ctrl.Load(ctx, cfg.Client.MeetingCode); err != nil {
		return err
	}
	if ctrl.Phase() != usecase.PhaseLive {
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Observability.MetricsAddr != "" {
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

		g.Go(func() error {
			logger.Info("Metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))
			if err := e.Start(cfg.Observability.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return reportStatus(gctx, ctrl)
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctrl.Phase() != usecase.PhaseLive {
			return nil
		}
		endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ctrl.End(endCtx); err != nil {
			logger.Warn("Meeting ended locally only", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errSessionOver) {
		return err
	}
	return nil
}

// reportStatus prints a status line every second until ctx ends or the
// session returns to the lobby.
func reportStatus(ctx context.Context, ctrl *usecase.SessionController) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	lastFinal := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		snap := ctrl.Snapshot()
		lines := ctrl.Subtitles().All()
		if len(lines) < lastFinal {
			lastFinal = 0
		}
		for _, line := range lines[lastFinal:] {
			fmt.Printf("\r\033[K> %s\n", line.Text)
		}
		lastFinal = len(lines)

		status := fmt.Sprintf("[%s] %s  voice=%s  mic=%t cam=%t",
			snap.Code, usecase.FormatRemaining(snap.Remaining), snap.Voice, snap.MicEnabled, snap.CamEnabled)
		if snap.Partial != "" {
			status += "  … " + snap.Partial
		}
		if snap.LastError != "" {
			status += "  ! " + snap.LastError
		}
		fmt.Printf("\r\033[K%s", strings.TrimSpace(status))

		if snap.Phase != usecase.PhaseLive {
			fmt.Println()
			return errSessionOver
		}
	}
}

// sessionStore selects where the session deadline survives restarts.
// Mongo entries are scoped by meeting code.
func sessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SessionStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return store.NewMemoryStore(), func() {}, nil
	case config.StoreMongo:
		client, err := mongo.NewClient(ctx, mongo.Config{
			URI:      cfg.Store.MongoURI,
			Database: cfg.Store.MongoDatabase,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return mongo.NewSessionStore(client.Database, cfg.Client.MeetingCode, logger), func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Warn("Failed to close MongoDB client", zap.Error(err))
			}
		}, nil
	default:
		fs, err := store.NewFileStore(cfg.Store.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}
