package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawmobile/internal/domain"
)

func TestValidateCron(t *testing.T) {
	tests := []struct {
		expr string
		ok   bool
	}{
		{"*/5 * * * *", true},
		{"0 9 * * 1-5", true},
		{"@hourly", true},
		{"", false},
		{"* * *", false},
		{"61 * * * *", false},
	}
	for _, tt := range tests {
		err := ValidateCron(tt.expr)
		if tt.ok {
			assert.NoError(t, err, tt.expr)
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidCron, tt.expr)
		}
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)

	next, err := NextRun("0 0 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), next)

	_, err = NextRun("nope", from)
	assert.ErrorIs(t, err, domain.ErrInvalidCron)
}

func TestFillNextRun(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := []domain.CronJob{
		{ID: "a", Expression: "30 10 * * *", Enabled: true},
		{ID: "b", Expression: "30 10 * * *", Enabled: false},
		{ID: "c", Expression: "broken", Enabled: true},
		{ID: "d", Expression: "30 10 * * *", Enabled: true, NextRun: 42},
	}

	fillNextRun(jobs, now)

	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), jobs[0].NextRun)
	assert.Zero(t, jobs[1].NextRun)
	assert.Zero(t, jobs[2].NextRun)
	assert.Equal(t, int64(42), jobs[3].NextRun)
}
