package search

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Quantities understood by ParseSpec.
const (
	QuantityVoltage   = "voltage"
	QuantityCurrent   = "current"
	QuantityFrequency = "frequency"
)

// unitScales maps a unit to its factor relative to the quantity's canonical
// unit: kV for voltage, A for current, Hz for frequency.
// Units are case sensitive where case changes the prefix (MV vs mV).
var unitScales = map[string]map[string]float64{
	QuantityVoltage: {
		"kV": 1, "KV": 1, "kv": 1,
		"V": 1e-3, "v": 1e-3,
		"MV": 1e3,
		"mV": 1e-6,
	},
	QuantityCurrent: {
		"A": 1, "a": 1,
		"kA": 1e3, "KA": 1e3, "ka": 1e3,
		"mA": 1e-3,
	},
	QuantityFrequency: {
		"Hz": 1, "HZ": 1, "hz": 1,
		"kHz": 1e3, "KHZ": 1e3, "khz": 1e3,
	},
}

const numberPattern = `(\d+(?:\.\d+)?)`

var (
	decimalComma = regexp.MustCompile(`(\d),(\d)`)
	rangeSpec    = regexp.MustCompile(`^(?i:from\s+)?` + numberPattern + `\s*([A-Za-z]*)\s*(?:-|(?i:to)|\.\.)\s*` + numberPattern + `\s*([A-Za-z]*)$`)
	upToSpec     = regexp.MustCompile(`^(?:(?i:up\s+to|max(?:imum)?|max\.)|<=|<|≤)\s*` + numberPattern + `\s*([A-Za-z]*)$`)
	listSpec     = regexp.MustCompile(`^` + numberPattern + `\s*([A-Za-z]*)((?:\s*/\s*` + numberPattern + `\s*[A-Za-z]*)+)$`)
	listTail     = regexp.MustCompile(`/\s*` + numberPattern + `\s*([A-Za-z]*)`)
	pointSpec    = regexp.MustCompile(`^(?:(?i:rated|nominal)\s+)?` + numberPattern + `\s*([A-Za-z]*)$`)
)

// NumericSpec is a parsed numeric specification in the quantity's canonical unit.
// Values is set for discrete sets such as "50/60 Hz"; otherwise the spec is
// the closed interval [Min, Max].
type NumericSpec struct {
	Quantity string
	Min, Max float64
	Values   []float64
}

// Discrete reports whether the spec is a set of discrete values.
func (s NumericSpec) Discrete() bool {
	return len(s.Values) > 0
}

// ParseSpec parses a free-form specification string for a quantity.
//
// Accepted forms: "A – B unit", "A-B unit", "A to B unit" (interval),
// "up to A unit" or "≤ A unit" (0 to A), "A/B unit" (discrete set) and
// "A unit" (single point). Decimal commas are accepted and a missing unit
// means the canonical unit.
func ParseSpec(attribute, raw string) (NumericSpec, error) {
	scales, ok := unitScales[attribute]
	if !ok {
		return NumericSpec{}, &ParseError{Attribute: attribute, Input: raw, Reason: "unsupported quantity"}
	}

	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("–", "-", "—", "-", "−", "-", " ", " ").Replace(s)
	s = decimalComma.ReplaceAllString(s, "$1.$2")

	fail := func(reason string) (NumericSpec, error) {
		return NumericSpec{}, &ParseError{Attribute: attribute, Input: raw, Reason: reason}
	}
	if s == "" {
		return fail("empty")
	}

	// convert scales a number by its unit; a missing unit falls back to fallback.
	convert := func(num, unit, fallback string) (float64, bool) {
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		if unit == "" {
			unit = fallback
		}
		if unit == "" {
			return v, true
		}
		scale, ok := scales[unit]
		if !ok {
			return 0, false
		}
		return v * scale, true
	}

	if m := rangeSpec.FindStringSubmatch(s); m != nil {
		hi, ok1 := convert(m[3], m[4], "")
		lo, ok2 := convert(m[1], m[2], m[4])
		if !ok1 || !ok2 {
			return fail("unknown unit")
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return NumericSpec{Quantity: attribute, Min: lo, Max: hi}, nil
	}

	if m := upToSpec.FindStringSubmatch(s); m != nil {
		hi, ok := convert(m[1], m[2], "")
		if !ok {
			return fail("unknown unit")
		}
		return NumericSpec{Quantity: attribute, Min: 0, Max: hi}, nil
	}

	if m := listSpec.FindStringSubmatch(s); m != nil {
		tail := listTail.FindAllStringSubmatch(m[3], -1)
		lastUnit := tail[len(tail)-1][2]
		first, ok := convert(m[1], m[2], lastUnit)
		if !ok {
			return fail("unknown unit")
		}
		values := []float64{first}
		for _, t := range tail {
			v, ok := convert(t[1], t[2], lastUnit)
			if !ok {
				return fail("unknown unit")
			}
			values = append(values, v)
		}
		slices.Sort(values)
		values = slices.Compact(values)
		return NumericSpec{Quantity: attribute, Min: values[0], Max: values[len(values)-1], Values: values}, nil
	}

	if m := pointSpec.FindStringSubmatch(s); m != nil {
		v, ok := convert(m[1], m[2], "")
		if !ok {
			return fail("unknown unit")
		}
		return NumericSpec{Quantity: attribute, Min: v, Max: v}, nil
	}

	return fail("unrecognised format")
}

// intervalTolerance returns the admission tolerance around [lo, hi].
func intervalTolerance(lo, hi, fraction float64) float64 {
	if hi > lo {
		return fraction * (hi - lo)
	}
	return fraction * math.Abs(lo)
}

// Bounds returns the tolerated admission window of the spec.
func (s NumericSpec) Bounds(fraction float64) (float64, float64) {
	if s.Discrete() {
		lo, hi := s.Values[0], s.Values[len(s.Values)-1]
		return lo - intervalTolerance(lo, lo, fraction), hi + intervalTolerance(hi, hi, fraction)
	}
	tol := intervalTolerance(s.Min, s.Max, fraction)
	return s.Min - tol, s.Max + tol
}

// Score returns 1 for a value inside the spec, a score in [0.1, 1) that falls
// with distance inside the tolerance band, and 0 beyond it.
// Discrete sets score against their nearest member.
func (s NumericSpec) Score(value, fraction float64) float64 {
	if s.Discrete() {
		best := 0.0
		for _, v := range s.Values {
			best = max(best, intervalScore(v, v, value, fraction))
		}
		return best
	}
	return intervalScore(s.Min, s.Max, value, fraction)
}

// intervalScore is 1 anywhere in [lo, hi]. Outside, it falls linearly from 1
// at the nearest edge to 0.1 at the edge of the tolerance band, then to 0.
func intervalScore(lo, hi, value, fraction float64) float64 {
	if value >= lo && value <= hi {
		return 1
	}
	d := lo - value
	if value > hi {
		d = value - hi
	}
	tol := intervalTolerance(lo, hi, fraction)
	if tol <= 0 || d > tol {
		return 0
	}
	return 1 - 0.9*d/tol
}
