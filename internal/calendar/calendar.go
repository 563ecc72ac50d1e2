// Package calendar derives UTC calendar snapshots from an injected clock.
package calendar

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/domain"
)

// SeasonForMonth maps a calendar month (1-12) to its meteorological season.
// December, January and February are winter.
func SeasonForMonth(month time.Month) domain.Season {
	switch month {
	case time.December, time.January, time.February:
		return domain.SeasonWinter
	case time.March, time.April, time.May:
		return domain.SeasonSpring
	case time.June, time.July, time.August:
		return domain.SeasonSummer
	default:
		return domain.SeasonFall
	}
}

// At builds the snapshot for an instant, converted to UTC.
func At(t time.Time) domain.TimeSnapshot {
	utc := t.UTC()
	return domain.TimeSnapshot{
		Year:   utc.Year(),
		Month:  int(utc.Month()),
		Day:    utc.Day(),
		Hour:   utc.Hour(),
		Minute: utc.Minute(),
		Second: utc.Second(),
		Unix:   utc.Unix(),
		Season: SeasonForMonth(utc.Month()),
	}
}

// Now reads the clock and returns a fresh snapshot. Snapshots are never cached.
func Now(clock clockwork.Clock) domain.TimeSnapshot {
	return At(clock.Now())
}
