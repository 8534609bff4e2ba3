package quota

import "time"

// dayFormat is the stable key format for a UTC calendar date.
const dayFormat = "2006-01-02"

// DayKey returns the ledger day key for t. Days roll over at UTC midnight;
// the key itself encodes the day, so counters reset implicitly without a
// cleanup job.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

// StartOfDayUTC returns 00:00:00 UTC of the day containing t.
func StartOfDayUTC(t time.Time) time.Time {
	tt := t.UTC()
	return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC)
}

// UntilEndOfDayUTC returns the duration from t until the next UTC midnight.
// Storage backends use it as the natural TTL for a day-scoped counter.
func UntilEndOfDayUTC(t time.Time) time.Duration {
	return StartOfDayUTC(t).Add(24 * time.Hour).Sub(t.UTC())
}
