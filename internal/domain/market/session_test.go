package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionAt(t *testing.T) {
	// 2026-04-14 is a Tuesday
	day := func(hour, min int) time.Time { return time.Date(2026, 4, 14, hour, min, 0, 0, time.UTC) }

	tests := []struct {
		name string
		at   time.Time
		want Session
	}{
		{"before open", day(8, 59), SessionClosed},
		{"open", day(9, 0), SessionMain},
		{"afternoon", day(17, 59), SessionMain},
		{"evening", day(18, 0), SessionEvening},
		{"evening close", day(20, 0), SessionClosed},
		{"saturday", time.Date(2026, 4, 18, 11, 0, 0, 0, time.UTC), SessionClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionAt(tt.at))
		})
	}
}

func TestSessionAt_UsesLocalHour(t *testing.T) {
	trt := time.FixedZone("TRT", 3*60*60)
	at := time.Date(2026, 4, 14, 7, 0, 0, 0, time.UTC)

	assert.Equal(t, SessionClosed, SessionAt(at))
	assert.Equal(t, SessionMain, SessionAt(at.In(trt)))
}

func TestQuote_ChangePct(t *testing.T) {
	assert.InDelta(t, 5.0, Quote{Price: 105, PreviousClose: 100}.ChangePct(), 1e-9)
	assert.Zero(t, Quote{Price: 105}.ChangePct())
}
