// Package units provides shared constants and validation for length units
package units

import (
	"fmt"
	"strings"
)

// Unit constants
const (
	M  = "m"
	CM = "cm"
	FT = "ft"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{M, CM, FT, IN}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertLength converts a length from meters to the target units.
// Fall heights are computed in meters.
func ConvertLength(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case CM:
		return meters * 100
	case FT:
		return meters / 0.3048
	case IN:
		return meters / 0.0254
	case M:
		return meters
	default:
		return meters // default to meters if unknown unit
	}
}

// FormatLength renders a height and its uncertainty in the target units,
// e.g. "1.23 ± 0.07 m". Unknown units fall back to meters.
func FormatLength(meters, sigma float64, targetUnits string) string {
	if !IsValid(targetUnits) {
		targetUnits = M
	}
	prec := 2
	if targetUnits == CM || targetUnits == IN {
		prec = 0
	}
	return fmt.Sprintf("%.*f ± %.*f %s", prec, ConvertLength(meters, targetUnits),
		prec, ConvertLength(sigma, targetUnits), targetUnits)
}
