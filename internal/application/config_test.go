package application

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/internal/ports"
)

// TestParseConfig covers YAML overlay on defaults and validation failures.
func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		verify  func(t *testing.T, cfg Config)
	}{
		{
			name: "empty document keeps defaults",
			yaml: ``,
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "full config",
			yaml: `
snapshot_path: /var/lib/tally/store.json
ratings:
  min: 1000
  max: 4000
quality:
  min: 0
  max: 5
delete_mode: purge
legacy_course_id: 3
report_rate:
  per_minute: 5
  burst: 2
watch: true
log_level: debug
`,
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, "/var/lib/tally/store.json", cfg.SnapshotPath)
				assert.Equal(t, Range{Min: 1000, Max: 4000}, cfg.Ratings)
				assert.Equal(t, Range{Min: 0, Max: 5}, cfg.Quality)
				assert.Equal(t, DeletePurge, cfg.DeleteMode)
				assert.Equal(t, 3, cfg.LegacyCourseID)
				assert.Equal(t, ReportRateConfig{PerMinute: 5, Burst: 2}, cfg.ReportRate)
				assert.True(t, cfg.Watch)
				assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
			},
		},
		{
			name:    "unknown delete mode",
			yaml:    `delete_mode: shred`,
			wantErr: true,
		},
		{
			name:    "inverted rating range",
			yaml:    "ratings:\n  min: 3500\n  max: 800\n",
			wantErr: true,
		},
		{
			name:    "empty quality range",
			yaml:    "quality:\n  min: 1\n  max: 1\n",
			wantErr: true,
		},
		{
			name:    "missing snapshot path",
			yaml:    `snapshot_path: ""`,
			wantErr: true,
		},
		{
			name:    "zero legacy course",
			yaml:    `legacy_course_id: 0`,
			wantErr: true,
		},
		{
			name:    "negative report rate",
			yaml:    "report_rate:\n  per_minute: -1\n",
			wantErr: true,
		},
		{
			name:    "bad log level",
			yaml:    `log_level: verbose`,
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "ratings: [",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.verify != nil {
				tt.verify(t, cfg)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigNotFound)
	var ce *ports.ConfigError
	assert.ErrorAs(t, err, &ce)

	path := filepath.Join(dir, "tally.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delete_mode: purge\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DeletePurge, cfg.DeleteMode)
	assert.Equal(t, DefaultConfig().Ratings, cfg.Ratings)
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for level, want := range tests {
		assert.Equal(t, want, Config{LogLevel: level}.SlogLevel(), level)
	}
}

func TestRange_Contains(t *testing.T) {
	r := Range{Min: 800, Max: 3500}
	assert.True(t, r.Contains(800))
	assert.True(t, r.Contains(3500))
	assert.False(t, r.Contains(799.999))
	assert.False(t, r.Contains(3500.001))
}
