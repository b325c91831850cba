package quota

import (
	"strconv"
	"strings"
	"time"
)

const keyDelimiter = ":"

// MinuteBucket maps a timestamp to its one-minute window index.
func MinuteBucket(t time.Time) int64 {
	return t.UnixMilli() / time.Minute.Milliseconds()
}

// DayKey maps a timestamp to its UTC calendar-date window. All daily tiers
// use calendar-date semantics; there is no rolling 24h variant.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MinuteKey builds the per-identity minute-window counter key.
func MinuteKey(identity string, t time.Time) string {
	return identity + keyDelimiter + "m" + keyDelimiter + strconv.FormatInt(MinuteBucket(t), 10)
}

// DailyKey builds the per-identity calendar-day counter key.
func DailyKey(identity string, t time.Time) string {
	return identity + keyDelimiter + "d" + keyDelimiter + DayKey(t)
}

// GlobalKey builds the shared calendar-day counter key. Keying the global
// counter by date gives it the same lazy day-rollover as every other daily
// tier: the first request after midnight starts a fresh key and the stale
// one is swept.
func GlobalKey(t time.Time) string {
	return "global" + keyDelimiter + "d" + keyDelimiter + DayKey(t)
}

// Stale reports whether a counter key's window component is older than the
// immediately previous window at time now. The window component is the text
// after the last delimiter: an integer for minute windows, a calendar date
// for daily windows. Unparseable keys are treated as stale.
func Stale(key string, now time.Time) bool {
	idx := strings.LastIndex(key, keyDelimiter)
	if idx < 0 || idx == len(key)-1 {
		return true
	}
	window := key[idx+1:]
	if bucket, errParse := strconv.ParseInt(window, 10, 64); errParse == nil {
		return bucket < MinuteBucket(now)-1
	}
	return window != DayKey(now) && window != DayKey(now.AddDate(0, 0, -1))
}
