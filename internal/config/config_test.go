package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []time.Duration
	}{
		{
			name: "defaults",
			raw:  "600,300,60",
			want: []time.Duration{10 * time.Minute, 5 * time.Minute, time.Minute},
		},
		{
			name: "whitespace tolerated",
			raw:  " 120 , 30 ",
			want: []time.Duration{2 * time.Minute, 30 * time.Second},
		},
		{
			name: "invalid and non-positive entries skipped",
			raw:  "600,abc,0,-5,60",
			want: []time.Duration{10 * time.Minute, time.Minute},
		},
		{
			name: "empty input",
			raw:  "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseThresholds(tt.raw))
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t,
		[]string{"https://app.example.com", "http://localhost:5173"},
		parseOrigins("https://app.example.com, http://localhost:5173,"),
	)
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, time.Second, cfg.TimekeeperTick)
	assert.Equal(t, 100, cfg.PointsPerQuestion)
	assert.Equal(t, 50, cfg.OutcomeBatchSize)
	assert.Len(t, cfg.WarningThresholds, 3)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUTOSAVE_INTERVAL_SECONDS", "5")
	t.Setenv("WARNING_THRESHOLDS_SECONDS", "300,60")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, []time.Duration{5 * time.Minute, time.Minute}, cfg.WarningThresholds)
}
