package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Env struct {
	AppPort           string        `validate:"required,numeric"`
	DetectionEndpoint string        `validate:"required,url"`
	FrameInterval     time.Duration `validate:"gt=0"`
	MaxDeferrals      int           `validate:"gte=1"`
	RateLimitRPS      float64       `validate:"gt=0"`
	RateLimitBurst    int           `validate:"gte=1"`
	VideoRateRPS      float64       `validate:"gt=0"`
	VideoRateBurst    int           `validate:"gte=1"`
	BodyLimitMB       int           `validate:"gte=1"`
	AppEnv            string
}

// defaultDetectionEndpoint is where the detection service listens when run
// with its own defaults (uvicorn on port 8000).
const defaultDetectionEndpoint = "http://127.0.0.1:8000"

// LoadEnv reads the process environment. It is called after godotenv.Load.
func LoadEnv(v *validator.Validate) (*Env, error) {
	port := getenv("APP_PORT", "3000")

	frameMs, err := intEnv("RENDER_FRAME_INTERVAL_MS", 16)
	if err != nil {
		return nil, err
	}
	maxDeferrals, err := intEnv("RENDER_MAX_DEFERRALS", 600)
	if err != nil {
		return nil, err
	}
	burst, err := intEnv("RATE_LIMIT_BURST", 100)
	if err != nil {
		return nil, err
	}
	videoBurst, err := intEnv("RATE_LIMIT_VIDEO_BURST", 3)
	if err != nil {
		return nil, err
	}
	bodyLimit, err := intEnv("BODY_LIMIT_MB", 512)
	if err != nil {
		return nil, err
	}
	rps, err := floatEnv("RATE_LIMIT_RPS", 50)
	if err != nil {
		return nil, err
	}
	videoRPS, err := floatEnv("RATE_LIMIT_VIDEO_RPS", 0.2)
	if err != nil {
		return nil, err
	}

	env := &Env{
		AppPort:           port,
		DetectionEndpoint: getenv("DETECTION_ENDPOINT", defaultDetectionEndpoint),
		FrameInterval:     time.Duration(frameMs) * time.Millisecond,
		MaxDeferrals:      maxDeferrals,
		RateLimitRPS:      rps,
		RateLimitBurst:    burst,
		VideoRateRPS:      videoRPS,
		VideoRateBurst:    videoBurst,
		BodyLimitMB:       bodyLimit,
		AppEnv:            os.Getenv("APP_ENV"),
	}

	if err := v.Struct(env); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return env, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// EndpointIsSelf reports whether DetectionEndpoint points back at this server
// on a loopback address. Submissions sent there can only ever 404.
func (e *Env) EndpointIsSelf() bool {
	u, err := url.Parse(e.DetectionEndpoint)
	if err != nil || u.Port() != e.AppPort {
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
