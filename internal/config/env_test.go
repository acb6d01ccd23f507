package config

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_PORT", "DETECTION_ENDPOINT", "RENDER_FRAME_INTERVAL_MS", "RENDER_MAX_DEFERRALS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_VIDEO_RPS", "RATE_LIMIT_VIDEO_BURST", "BODY_LIMIT_MB",
	} {
		t.Setenv(key, "")
	}

	env, err := LoadEnv(NewValidator())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, env.AppPort, test.ShouldEqual, "3000")
	test.That(t, env.DetectionEndpoint, test.ShouldEqual, "http://127.0.0.1:8000")
	test.That(t, env.EndpointIsSelf(), test.ShouldBeFalse)
	test.That(t, env.FrameInterval, test.ShouldEqual, 16*time.Millisecond)
	test.That(t, env.MaxDeferrals, test.ShouldEqual, 600)
	test.That(t, env.RateLimitRPS, test.ShouldEqual, 50.0)
	test.That(t, env.RateLimitBurst, test.ShouldEqual, 100)
	test.That(t, env.VideoRateRPS, test.ShouldEqual, 0.2)
	test.That(t, env.VideoRateBurst, test.ShouldEqual, 3)
	test.That(t, env.BodyLimitMB, test.ShouldEqual, 512)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DETECTION_ENDPOINT", "http://detector:8000")
	t.Setenv("RENDER_FRAME_INTERVAL_MS", "33")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	env, err := LoadEnv(NewValidator())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, env.AppPort, test.ShouldEqual, "8080")
	test.That(t, env.DetectionEndpoint, test.ShouldEqual, "http://detector:8000")
	test.That(t, env.FrameInterval, test.ShouldEqual, 33*time.Millisecond)
	test.That(t, env.RateLimitRPS, test.ShouldEqual, 2.5)
}

func TestLoadEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("RENDER_MAX_DEFERRALS", "many")
	_, err := LoadEnv(NewValidator())
	test.That(t, err, test.ShouldNotBeNil)

	t.Setenv("RENDER_MAX_DEFERRALS", "")
	t.Setenv("DETECTION_ENDPOINT", "not a url")
	_, err = LoadEnv(NewValidator())
	test.That(t, err, test.ShouldNotBeNil)

	t.Setenv("DETECTION_ENDPOINT", "")
	t.Setenv("RENDER_FRAME_INTERVAL_MS", "0")
	_, err = LoadEnv(NewValidator())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEndpointIsSelf(t *testing.T) {
	for _, tc := range []struct {
		endpoint string
		self     bool
	}{
		{"http://127.0.0.1:3000", true},
		{"http://localhost:3000/", true},
		{"http://0.0.0.0:3000", true},
		{"http://127.0.0.1:8000", false},
		{"http://detector:3000", false},
		{"http://127.0.0.1", false},
	} {
		env := &Env{AppPort: "3000", DetectionEndpoint: tc.endpoint}
		test.That(t, env.EndpointIsSelf(), test.ShouldEqual, tc.self)
	}
}

func TestLoadEnvRejectsBadVideoRate(t *testing.T) {
	t.Setenv("RATE_LIMIT_VIDEO_RPS", "fast")
	_, err := LoadEnv(NewValidator())
	test.That(t, err, test.ShouldNotBeNil)

	t.Setenv("RATE_LIMIT_VIDEO_RPS", "0")
	_, err = LoadEnv(NewValidator())
	test.That(t, err, test.ShouldNotBeNil)
}
