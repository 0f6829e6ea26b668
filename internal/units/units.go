// Package units converts vehicle speeds for display.
package units

import (
	"fmt"
	"strings"
)

// Speed units.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits lists the accepted unit names.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid reports whether unit is one of ValidUnits.
func IsValid(unit string) bool {
	for _, u := range ValidUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// Parse normalises a unit name. Empty means MPS.
func Parse(unit string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return MPS, nil
	}
	if !IsValid(u) {
		return "", fmt.Errorf("unknown speed unit %q: want one of %s", unit, strings.Join(ValidUnits, ", "))
	}
	return u, nil
}

// ConvertSpeed converts metres per second to unit. Unknown units pass the
// value through.
func ConvertSpeed(mps float64, unit string) float64 {
	switch unit {
	case MPH:
		return mps * 2.23694
	case KMPH, KPH:
		return mps * 3.6
	default:
		return mps
	}
}

// ConvertSpeeds converts every value in place and returns the slice.
func ConvertSpeeds(mps []float64, unit string) []float64 {
	for i, v := range mps {
		mps[i] = ConvertSpeed(v, unit)
	}
	return mps
}

// Label is the axis label for unit.
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}
