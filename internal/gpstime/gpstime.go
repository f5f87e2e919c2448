// Package gpstime resolves the receiver's truncated week counter into an
// absolute GPS week and derives UTC.
//
// The receiver transmits a week number that wraps every 1024 weeks. The wrap
// epoch cannot be recovered from traffic, so a reference week supplied by the
// operator anchors the resolution. The reference must be moved forward from
// time to time; StaleBy reports how far it lags the wall clock.
package gpstime

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	WeekModulus    = 1024
	SecondsPerWeek = 604800
	// MaxUTCOffset bounds the GPS-UTC offset accepted without flagging.
	MaxUTCOffset = 1000
)

// Epoch is the start of GPS week 0.
var Epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

var (
	ErrTimeOfWeek    = errors.New("gpstime: time of week out of range")
	ErrReferenceWeek = errors.New("gpstime: reference week must be positive")
)

// Time is the time report as transmitted.
type Time struct {
	TimeOfWeek float64
	Week       uint16
	UTCOffset  float64
}

// Absolute is a resolved time report.
type Absolute struct {
	Week int       `json:"week"`
	GPS  time.Time `json:"gps"`
	UTC  time.Time `json:"utc"`
	// OffsetValid is false when the transmitted UTC offset fell outside
	// [0, MaxUTCOffset). UTC then equals GPS and the offset is not applied.
	OffsetValid bool `json:"offset_valid"`
}

type Normalizer struct {
	reference int
}

func NewNormalizer(referenceWeek int) (*Normalizer, error) {
	if referenceWeek <= 0 {
		return nil, ErrReferenceWeek
	}
	return &Normalizer{reference: referenceWeek}, nil
}

func (n *Normalizer) ReferenceWeek() int { return n.reference }

// ResolveWeek adds whole 1024-week epochs to week until it is within one
// modulus of the reference week.
func (n *Normalizer) ResolveWeek(week uint16) int {
	w := int(week)
	for w < n.reference-WeekModulus {
		w += WeekModulus
	}
	return w
}

// Resolve converts a transmitted time report into absolute GPS time and UTC.
func (n *Normalizer) Resolve(t Time) (Absolute, error) {
	if math.IsNaN(t.TimeOfWeek) || t.TimeOfWeek < 0 || t.TimeOfWeek >= SecondsPerWeek {
		return Absolute{}, fmt.Errorf("%w: %v", ErrTimeOfWeek, t.TimeOfWeek)
	}
	week := n.ResolveWeek(t.Week)
	gps := FromWeek(week, t.TimeOfWeek)

	abs := Absolute{Week: week, GPS: gps, UTC: gps}
	if t.UTCOffset >= 0 && t.UTCOffset < MaxUTCOffset {
		abs.UTC = gps.Add(-time.Duration(math.Trunc(t.UTCOffset)) * time.Second)
		abs.OffsetValid = true
	}
	return abs, nil
}

// FromWeek returns the instant tow seconds into absolute GPS week.
func FromWeek(week int, tow float64) time.Time {
	return Epoch.AddDate(0, 0, 7*week).Add(time.Duration(tow * float64(time.Second)))
}

// CurrentWeek returns the absolute GPS week containing now. Leap seconds are
// ignored; they cannot move the result by more than a week boundary.
func CurrentWeek(now time.Time) int {
	return int(now.Sub(Epoch) / (7 * 24 * time.Hour))
}

// StaleBy returns how many weeks the reference week lags the week containing
// now. Negative values mean the reference is ahead of the clock.
func (n *Normalizer) StaleBy(now time.Time) int {
	return CurrentWeek(now) - n.reference
}
