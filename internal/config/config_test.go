package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "PORT", "")
	setEnv(t, "AI_MODEL_API", "")
	setEnv(t, "MOCK_DATA", "")
	setEnv(t, "CACHE_TTL_MS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, int64(DefaultChainID), cfg.ChainID)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultRemoteTimeout, cfg.RemoteTimeout)
	assert.True(t, cfg.MockData, "mock data should default to enabled")
	assert.False(t, cfg.UseCachedModel)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "AI_MODEL_API", "http://scoring.internal:5000")
	setEnv(t, "MOCK_DATA", "false")
	setEnv(t, "USE_CACHED_MODEL", "true")
	setEnv(t, "MODEL_PATH", "/opt/models/risk.json")
	setEnv(t, "REMOTE_TIMEOUT_MS", "2500")
	setEnv(t, "CACHE_TTL_MS", "60000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://scoring.internal:5000", cfg.ModelAPI)
	assert.False(t, cfg.MockData)
	assert.True(t, cfg.UseCachedModel)
	assert.Equal(t, "/opt/models/risk.json", cfg.ModelPath)
	assert.Equal(t, 2500*time.Millisecond, cfg.RemoteTimeout)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func TestLoad_InvalidModelAPI(t *testing.T) {
	setEnv(t, "AI_MODEL_API", "not a url")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "AI_MODEL_API")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				ModelAPI:      "http://localhost:5000",
				RemoteTimeout: time.Second,
				CacheTTL:      time.Minute,
			},
			wantErr: "",
		},
		{
			name: "remote tier disabled is valid",
			config: Config{
				RemoteTimeout: time.Second,
				CacheTTL:      time.Minute,
			},
			wantErr: "",
		},
		{
			name: "zero remote timeout",
			config: Config{
				CacheTTL: time.Minute,
			},
			wantErr: "REMOTE_TIMEOUT_MS",
		},
		{
			name: "zero cache ttl",
			config: Config{
				RemoteTimeout: time.Second,
			},
			wantErr: "CACHE_TTL_MS",
		},
		{
			name: "cached model without path",
			config: Config{
				RemoteTimeout:  time.Second,
				CacheTTL:       time.Minute,
				UseCachedModel: true,
			},
			wantErr: "MODEL_PATH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_EnvHelpers(t *testing.T) {
	setEnv(t, "ENV", "production")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
}
