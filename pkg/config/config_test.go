package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockDurations(t *testing.T) {
	got := parseBlockDurations(" CS291:3, EC201:2 ,BAD,MA101:x,PH191:6")
	assert.Equal(t, map[string]int{"CS291": 3, "EC201": 2}, got)
	assert.Empty(t, parseBlockDurations(""))
}

func TestLoadSchedulerDefaults(t *testing.T) {
	t.Setenv("SCHEDULER_BLOCK_DURATIONS", "CS291:4")
	t.Setenv("SCHEDULER_MAX_ATTEMPTS", "12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, 10, cfg.Scheduler.RelaxAfter)
	assert.Equal(t, 7, cfg.Scheduler.DefaultTeachingSlots)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.JobTTL)
	assert.Equal(t, map[string]int{"CS291": 4}, cfg.Scheduler.BlockDurations)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}
