package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		name      string
		timeframe string
		expected  time.Duration
		wantErr   bool
	}{
		{"one second", "1s", time.Second, false},
		{"five seconds", "5s", 5 * time.Second, false},
		{"ten seconds", "10s", 10 * time.Second, false},
		{"thirty seconds", "30s", 30 * time.Second, false},
		{"one minute", "1m", time.Minute, false},
		{"five minutes", "5m", 5 * time.Minute, false},
		{"arbitrary duration rejected", "7s", 0, true},
		{"hourly not supported", "1h", 0, true},
		{"empty", "", 0, true},
		{"garbage", "fast", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseTimeframe(tt.timeframe)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorAs(t, err, &ErrInvalidTimeframe{})
				assert.False(t, IsValidTimeframe(tt.timeframe))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, d)
			assert.True(t, IsValidTimeframe(tt.timeframe))
		})
	}
}

func TestBucket(t *testing.T) {
	base := time.UnixMilli(1700000000000).UTC() // falls on a second boundary

	tests := []struct {
		name     string
		at       time.Time
		duration time.Duration
		expected time.Time
	}{
		{"on boundary", base, time.Second, base},
		{"mid second", base.Add(350 * time.Millisecond), time.Second, base},
		{"end of bucket", base.Add(999 * time.Millisecond), time.Second, base},
		{"next bucket", base.Add(time.Second), time.Second, base.Add(time.Second)},
		{"five second bucket", base.Add(7 * time.Second), 5 * time.Second, base.Add(5 * time.Second)},
		{"minute bucket", base.Add(59 * time.Second), time.Minute, time.UnixMilli(1700000040000).UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Bucket(tt.at, tt.duration))
		})
	}
}
