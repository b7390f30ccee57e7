// Package timestamp provides a microsecond-precision point in time with a
// total order, mirroring the zmuduo Timestamp type this module is ported
// from.
package timestamp

import (
	"fmt"
	"math"
	"time"
)

// MicroSecondsPerSecond is the number of microseconds in one second.
const MicroSecondsPerSecond = int64(1e6)

// Timestamp is a count of microseconds since the Unix epoch. The zero value
// is Invalid.
type Timestamp int64

// Invalid returns the zero Timestamp.
func Invalid() Timestamp { return 0 }

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a time.Time into a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.Unix()*MicroSecondsPerSecond + int64(t.Nanosecond())/1000)
}

// FromUnix builds a Timestamp from Unix seconds and microseconds.
func FromUnix(seconds int64, microseconds int64) Timestamp {
	return Timestamp(seconds*MicroSecondsPerSecond + microseconds)
}

// IsValid reports whether the timestamp holds a value greater than zero.
func (t Timestamp) IsValid() bool {
	return t > 0
}

// MicroSecondsSinceEpoch returns the raw microsecond count.
func (t Timestamp) MicroSecondsSinceEpoch() int64 {
	return int64(t)
}

// SecondsSinceEpoch truncates the timestamp down to whole seconds.
func (t Timestamp) SecondsSinceEpoch() int64 {
	return int64(t) / MicroSecondsPerSecond
}

// Time converts the Timestamp back to a time.Time in the local zone.
func (t Timestamp) Time() time.Time {
	micros := int64(t)
	return time.Unix(micros/MicroSecondsPerSecond, (micros%MicroSecondsPerSecond)*1000)
}

// Add returns a new Timestamp offset by the given number of seconds,
// rounding to the nearest microsecond.
func (t Timestamp) Add(seconds float64) Timestamp {
	delta := int64(math.Round(seconds * float64(MicroSecondsPerSecond)))
	return Timestamp(int64(t) + delta)
}

// Before reports whether t occurs strictly before other.
func (t Timestamp) Before(other Timestamp) bool { return t < other }

// After reports whether t occurs strictly after other.
func (t Timestamp) After(other Timestamp) bool { return t > other }

// String renders the timestamp as "yyyy-MM-dd HH:mm:ss.ffffff".
func (t Timestamp) String() string {
	tm := t.Time()
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
		tm.Year(), tm.Month(), tm.Day(), tm.Hour(), tm.Minute(), tm.Second(),
		int64(t)%MicroSecondsPerSecond)
}
