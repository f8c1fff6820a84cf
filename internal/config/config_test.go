package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"backend_url": "https://api.example.com",
		"summary_label": "Report",
		"upload_concurrency": 4,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, "Report", cfg.SummaryLabel)
	assert.Equal(t, 4, cfg.UploadConcurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	content := "backend_url: https://api.example.com\nport: 9090\nlocale: fr_FR\nmax_upload_bytes: 1024\n"

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "fr_FR", cfg.Locale)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("port: [unclosed"), 0644))

	_, err := LoadConfig(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://env.example.com")
	t.Setenv("PORT", "7000")
	t.Setenv("UPLOAD_CONCURRENCY", "3")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("SUMMARY_LABEL", "")

	cfg := Config{BackendURL: "https://file.example.com", SummaryLabel: "Kept"}
	require.NoError(t, cfg.FromEnv())

	assert.Equal(t, "https://env.example.com", cfg.BackendURL)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 3, cfg.UploadConcurrency)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, "Kept", cfg.SummaryLabel, "unset variables leave values untouched")
}

func TestFromEnv_InvalidNumber(t *testing.T) {
	t.Setenv("PORT", "eighty")

	cfg := Config{}
	err := cfg.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "defaults", cfg: Defaults()},
		{name: "port range", cfg: Config{Port: 70000}, wantErr: "port"},
		{name: "negative concurrency", cfg: Config{UploadConcurrency: -1}, wantErr: "upload_concurrency"},
		{name: "negative upload size", cfg: Config{MaxUploadBytes: -1}, wantErr: "max_upload_bytes"},
		{name: "upload size above ceiling", cfg: Config{MaxUploadBytes: 50<<20 + 1}, wantErr: "max_upload_bytes"},
		{name: "upload size at ceiling", cfg: Config{MaxUploadBytes: 50 << 20}},
		{name: "unknown locale", cfg: Config{Locale: "xx_XX"}, wantErr: "locale"},
		{name: "french locale", cfg: Config{Locale: "fr_FR"}},
		{name: "label with slash", cfg: Config{SummaryLabel: "a/b"}, wantErr: "summary_label"},
		{name: "log format", cfg: Config{LogFormat: "xml"}, wantErr: "log_format"},
		{name: "missing logo", cfg: Config{LogoPath: "/nonexistent/logo.png"}, wantErr: "logo file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		BackendURL:        "https://custom.example.com",
		UploadConcurrency: 8,
	}

	merged := partial.MergeWithDefaults(Defaults())

	assert.Equal(t, "https://custom.example.com", merged.BackendURL)
	assert.Equal(t, 8, merged.UploadConcurrency)

	assert.Equal(t, DefaultPort, merged.Port)
	assert.Equal(t, DefaultLocale, merged.Locale)
	assert.Equal(t, DefaultSummaryLabel, merged.SummaryLabel)
	assert.Equal(t, int64(DefaultMaxUploadBytes), merged.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, merged.FetchTimeout())
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{BackendURL: "https://x.example.com"}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "https://x.example.com", merged.BackendURL)
	assert.Zero(t, merged.Port)
}
