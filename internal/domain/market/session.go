package market

import "time"

// Session is the exchange trading session at a point in time.
type Session string

const (
	SessionMain    Session = "main"
	SessionEvening Session = "evening"
	SessionClosed  Session = "closed"
)

// Session boundaries in exchange-local hours.
const (
	MainOpenHour     = 9
	EveningOpenHour  = 18
	EveningCloseHour = 20
)

// SessionAt returns the session for t, read in t's own location.
// Weekends are closed.
func SessionAt(t time.Time) Session {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return SessionClosed
	}
	switch h := t.Hour(); {
	case h >= MainOpenHour && h < EveningOpenHour:
		return SessionMain
	case h >= EveningOpenHour && h < EveningCloseHour:
		return SessionEvening
	}
	return SessionClosed
}
