package reconnect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoublesUpToCap(t *testing.T) {
	p := Default()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{9, 30 * time.Second},
		{62, 30 * time.Second},
		{1000, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestDelayMatchesFormulaForEveryAttempt(t *testing.T) {
	p := Default()
	for attempts := 0; attempts < p.MaxAttempts; attempts++ {
		want := time.Duration(1000*(1<<attempts)) * time.Millisecond
		if want > 30*time.Second {
			want = 30 * time.Second
		}
		assert.Equal(t, want, p.Delay(attempts), "attempts=%d", attempts)
	}
}

func TestNextStopsAtMaxAttempts(t *testing.T) {
	p := Default()

	for attempts := 0; attempts < 10; attempts++ {
		_, ok := p.Next(attempts)
		assert.True(t, ok, "attempts=%d", attempts)
	}
	d, ok := p.Next(10)
	assert.False(t, ok)
	assert.Zero(t, d)
	assert.True(t, p.Exhausted(11))
}

func TestWithDefaults(t *testing.T) {
	p := Policy{MaxAttempts: 3}.WithDefaults()
	assert.Equal(t, DefaultBaseDelay, p.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, p.MaxDelay)
	assert.Equal(t, 3, p.MaxAttempts)
}

func TestBudget(t *testing.T) {
	// 1+2+4+8+16 + 5*30 seconds.
	assert.Equal(t, 181*time.Second, Default().Budget())
}

func TestNegativeAttemptsTreatedAsZero(t *testing.T) {
	assert.Equal(t, time.Second, Default().Delay(-3))
}
