package prefs

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/welldash/internal/monitoring"
)

// DefaultMarkerSize is the occurrence marker radius used when none is stored.
const DefaultMarkerSize = 8

var logf = monitoring.Component("prefs")

// Baseline returns the stored pressure baseline for a well.
func Baseline(s Store, wellID string) (float64, bool) {
	var v float64
	ok, err := GetJSON(s, Key(FeatureBaseline, wellID), &v)
	if err != nil {
		logf("baseline %s unreadable: %v", wellID, err)
		return 0, false
	}
	return v, ok
}

// SetBaselineText parses user input and stores it as the baseline. Input
// that is not a finite number is ignored and the previous value kept; the
// return value reports whether a new baseline was stored.
func SetBaselineText(s Store, wellID, text string) bool {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if err := SetJSON(s, Key(FeatureBaseline, wellID), v); err != nil {
		logf("store baseline %s: %v", wellID, err)
		return false
	}
	return true
}

// ReferencePoint returns the stored reference timestamp for a well.
func ReferencePoint(s Store, wellID string) (time.Time, bool) {
	var raw string
	ok, err := GetJSON(s, Key(FeatureReferencePoint, wellID), &raw)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetReferencePoint stores t as an RFC 3339 string. A zero time is ignored.
func SetReferencePoint(s Store, wellID string, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	return SetJSON(s, Key(FeatureReferencePoint, wellID), t.UTC().Format(time.RFC3339))
}

// MarkerSize returns the occurrence marker size, DefaultMarkerSize when unset.
func MarkerSize(s Store, wellID string) int {
	var v int
	ok, err := GetJSON(s, Key(FeatureMarkerSize, wellID), &v)
	if err != nil || !ok || v <= 0 {
		return DefaultMarkerSize
	}
	return v
}

// SetMarkerSize stores a positive marker size; other values are ignored.
func SetMarkerSize(s Store, wellID string, size int) error {
	if size <= 0 {
		return nil
	}
	return SetJSON(s, Key(FeatureMarkerSize, wellID), size)
}
