package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

type Config struct {
	Client        ClientConfig
	Voice         VoiceConfig
	Capture       CaptureConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
	Backend       BackendConfig
}

type ClientConfig struct {
	BackendURL  string
	MeetingCode string
}

type VoiceConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

type CaptureConfig struct {
	MicEnabled   bool
	CamEnabled   bool
	CameraDevice string
	CameraFormat string
	FFmpegPath   string
}

type StoreConfig struct {
	Backend       string
	Path          string
	MongoURI      string
	MongoDatabase string
}

type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TranscriptTopic string
	LifecycleTopic  string
}

type ObservabilityConfig struct {
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// BackendConfig configures the mock interview backend
type BackendConfig struct {
	Port      string
	JWTSecret string
	VideoDir  string
	Repo      string
}

// Load reads an optional .env file, then the environment.
func Load(files ...string) *Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load(files...)

	return &Config{
		Client: ClientConfig{
			BackendURL:  envOrDefault("BACKEND_URL", "http://localhost:8787"),
			MeetingCode: envOrDefault("MEETING_CODE", "abc"),
		},
		Voice: VoiceConfig{
			MaxRetries: envInt("VOICE_MAX_RETRIES", 3),
			BaseDelay:  envDuration("VOICE_BASE_DELAY", 500*time.Millisecond),
		},
		Capture: CaptureConfig{
			MicEnabled:   envBool("MIC_ENABLED", true),
			CamEnabled:   envBool("CAM_ENABLED", false),
			CameraDevice: envOrDefault("CAMERA_DEVICE", "/dev/video0"),
			CameraFormat: envOrDefault("CAMERA_FORMAT", "v4l2"),
			FFmpegPath:   envOrDefault("FFMPEG_PATH", "ffmpeg"),
		},
		Store: StoreConfig{
			Backend:       envOrDefault("STORE_BACKEND", StoreFile),
			Path:          envOrDefault("STORE_PATH", ".hunty/session.json"),
			MongoURI:      os.Getenv("MONGODB_URI"),
			MongoDatabase: envOrDefault("MONGODB_DATABASE", "hunty"),
		},
		Kafka: KafkaConfig{
			Enabled:         envBool("KAFKA_ENABLED", false),
			Brokers:         envList("KAFKA_BROKERS"),
			TranscriptTopic: envOrDefault("KAFKA_TOPIC", "interview.transcript.final"),
			LifecycleTopic:  envOrDefault("KAFKA_LIFECYCLE_TOPIC", "interview.lifecycle"),
		},
		Observability: ObservabilityConfig{
			MetricsAddr: os.Getenv("METRICS_ADDR"),
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
		},
		Backend: BackendConfig{
			Port:      envOrDefault("PORT", "8787"),
			JWTSecret: envOrDefault("JWT_SECRET", "hunty-dev-secret"),
			VideoDir:  envOrDefault("VIDEO_DIR", "recordings"),
			Repo:      envOrDefault("MEETING_REPO", StoreMemory),
		},
	}
}

// Validate reports every inconsistent value at once
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Client.BackendURL)
	if err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("BACKEND_URL %q is not an absolute url", c.Client.BackendURL))
	} else if s := u.Scheme; s != "http" && s != "https" && s != "ws" && s != "wss" {
		errs = append(errs, fmt.Errorf("BACKEND_URL scheme %q is not supported", s))
	}

	if c.Voice.MaxRetries < 0 {
		errs = append(errs, errors.New("VOICE_MAX_RETRIES must not be negative"))
	}
	if c.Voice.BaseDelay <= 0 {
		errs = append(errs, errors.New("VOICE_BASE_DELAY must be positive"))
	}

	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("STORE_PATH is required for the file store"))
		}
	case StoreMemory:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q must be one of file, memory, mongo", c.Store.Backend))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}

	switch c.Backend.Repo {
	case StoreMemory:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo meeting repository"))
		}
	default:
		errs = append(errs, fmt.Errorf("MEETING_REPO %q must be memory or mongo", c.Backend.Repo))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
