// Package eventid implements the event identity codec. An event's
// primary key is its start timestamp encoded positionally as the
// base-10 integer YYYYMMDDHHMM, which makes integer comparison
// chronological comparison and lets "future events" be a simple
// range query.
package eventid

import (
	"fmt"
	"strconv"
	"time"
)

// ID is an encoded event identity.
type ID int64

// Encode derives the identity from a start timestamp. Granularity is
// one minute; seconds are dropped.
func Encode(t time.Time) ID {
	return ID(t.Year())*1e8 +
		ID(t.Month())*1e6 +
		ID(t.Day())*1e4 +
		ID(t.Hour())*1e2 +
		ID(t.Minute())
}

// Time decodes the identity back into a timestamp in loc. It is the
// inverse of Encode for every valid identity.
func (id ID) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	n := int64(id)
	minute := int(n % 100)
	hour := int(n / 1e2 % 100)
	day := int(n / 1e4 % 100)
	month := int(n / 1e6 % 100)
	year := int(n / 1e8)

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalises out-of-range components, so a changed
	// round trip means the digits never named a real minute.
	if Encode(t) != id {
		return time.Time{}, fmt.Errorf("eventid: %d does not encode a valid date/time", n)
	}
	return t, nil
}

// Valid reports whether the identity decodes to a real date and time.
func (id ID) Valid() bool {
	_, err := id.Time(time.UTC)
	return err == nil && id >= 1e11 && id < 1e12
}

// Parse reads an identity from its wire form, e.g. callback data.
func Parse(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("eventid: parse %q: %w", s, err)
	}
	id := ID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("eventid: %d does not encode a valid date/time", n)
	}
	return id, nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Now encodes the current minute in loc; everything greater is a
// future event.
func Now(loc *time.Location) ID {
	if loc == nil {
		loc = time.Local
	}
	return Encode(time.Now().In(loc))
}
