package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiredVariables(t *testing.T) {
	clearEnv := func() {
		os.Unsetenv("VEO_PROJECT_ID")
		os.Unsetenv("VEO_REGION")
		os.Unsetenv("VEO_MODEL")
		os.Unsetenv("VEO_API_BASE_URL")
		os.Unsetenv("VEO_ACCESS_TOKEN")
		os.Unsetenv("VEO_ACCESS_TOKEN_COMMAND")
		os.Unsetenv("POLL_INTERVAL")
		os.Unsetenv("POLL_MAX_ATTEMPTS")
		os.Unsetenv("STORE_REGION")
		os.Unsetenv("STORE_ENDPOINT")
		os.Unsetenv("AWS_ACCESS_KEY_ID")
		os.Unsetenv("AWS_SECRET_ACCESS_KEY")
		os.Unsetenv("MAX_CONCURRENT_CLIPS")
		os.Unsetenv("WORK_DIR")
		os.Unsetenv("FFMPEG_PATH")
		os.Unsetenv("LOG_FORMAT")
		os.Unsetenv("LOG_LEVEL")
	}

	t.Run("missing VEO_PROJECT_ID returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("VEO_ACCESS_TOKEN", "test-token")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProjectIDRequired)
	})

	t.Run("missing token and token command returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("VEO_PROJECT_ID", "test-project")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAccessTokenRequired)
	})

	t.Run("token command alone satisfies the token requirement", func(t *testing.T) {
		clearEnv()
		t.Setenv("VEO_PROJECT_ID", "test-project")
		t.Setenv("VEO_ACCESS_TOKEN_COMMAND", "gcloud auth print-access-token")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Empty(t, cfg.AccessToken)
		assert.Equal(t, "gcloud auth print-access-token", cfg.AccessTokenCommand)
	})

	t.Run("all required variables present succeeds", func(t *testing.T) {
		clearEnv()
		t.Setenv("VEO_PROJECT_ID", "test-project")
		t.Setenv("VEO_ACCESS_TOKEN", "test-token")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "test-project", cfg.ProjectID)
		assert.Equal(t, "test-token", cfg.AccessToken)
	})
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VEO_PROJECT_ID", "test-project")
	t.Setenv("VEO_ACCESS_TOKEN", "test-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "us-central1", cfg.Region)
	assert.Equal(t, "veo-3.0-generate-preview", cfg.Model)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 240, cfg.PollMaxAttempts)
	assert.Equal(t, "us-east-1", cfg.StoreRegion)
	assert.Equal(t, 2, cfg.MaxConcurrentClips)
	assert.Equal(t, "/tmp/veoctl", cfg.WorkDir)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("VEO_PROJECT_ID", "custom-project")
	t.Setenv("VEO_ACCESS_TOKEN", "custom-token")
	t.Setenv("VEO_REGION", "europe-west4")
	t.Setenv("VEO_MODEL", "veo-2.0-generate-001")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("POLL_MAX_ATTEMPTS", "10")
	t.Setenv("STORE_REGION", "eu-west-1")
	t.Setenv("STORE_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("MAX_CONCURRENT_CLIPS", "4")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "europe-west4", cfg.Region)
	assert.Equal(t, "veo-2.0-generate-001", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.PollMaxAttempts)
	assert.Equal(t, "eu-west-1", cfg.StoreRegion)
	assert.Equal(t, "http://localhost:4566", cfg.StoreEndpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, 4, cfg.MaxConcurrentClips)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("VEO_PROJECT_ID", "test-project")
	t.Setenv("VEO_ACCESS_TOKEN", "test-token")
	t.Setenv("POLL_MAX_ATTEMPTS", "not-a-number")

	// go-envconfig returns an error when parsing fails
	_, err := Load()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name         string
		projectID    string
		token        string
		tokenCommand string
		wantErr      error
	}{
		{"both set", "project", "token", "", nil},
		{"missing project", "", "token", "", ErrProjectIDRequired},
		{"missing token", "project", "", "", ErrAccessTokenRequired},
		{"token command only", "project", "", "gcloud auth print-access-token", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ProjectID: tt.projectID, AccessToken: tt.token, AccessTokenCommand: tt.tokenCommand}
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_String_MasksSecrets(t *testing.T) {
	cfg := &Config{
		ProjectID:          "project",
		AccessToken:        "super-secret",
		AWSSecretAccessKey: "also-secret",
	}

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.NotContains(t, s, "also-secret")
	assert.Contains(t, s, "project")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
