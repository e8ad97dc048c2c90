// Value normalization and the comparator operators (CMP, §3) applied
// to device-state, trigger-event, and sensor-reading stimuli, plus
// ambient conditions. Adopts the tagged-union-by-decoding approach the
// Design Notes call for (§9 "Polymorphic values"): every JSON scalar is
// decoded through encoding/json into interface{} once, then compared
// on a canonical string or numeric form.
package automation

import (
	"encoding/json"
	"strconv"
	"strings"

	"sdhome/internal/models"
)

const numericTolerance = 1e-3

// decodeJSON turns a possibly-empty JSON scalar into a Go value.
func decodeJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// normalizedString reduces a decoded JSON scalar or ambient cache value
// to a canonical string form so `"ON"` (JSON) and `ON` (Go string) match.
func normalizedString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// asFloat extracts a numeric value, tolerating numeric strings with
// surrounding whitespace (§8 boundary case: "23", " 23.0 ").
func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func numericEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= numericTolerance
}

// compareStateChange implements §4.5.2's device-state trigger predicate.
func compareStateChange(op models.Operator, oldVal, newVal interface{}, expectedRaw json.RawMessage) bool {
	switch op {
	case models.OpAnyChange:
		return normalizedString(oldVal) != normalizedString(newVal)
	case models.OpChangesTo:
		return normalizedString(newVal) == normalizedString(decodeJSON(expectedRaw))
	case models.OpChangesFrom:
		return normalizedString(oldVal) == normalizedString(decodeJSON(expectedRaw))
	default:
		return compareScalar(op, newVal, expectedRaw, nil)
	}
}

// compareScalar implements the CMP operator set against a single
// current/actual value, used by DeviceState conditions and non-delta
// trigger operators. expected2Raw is only consulted for Between.
func compareScalar(op models.Operator, actual interface{}, expectedRaw, expected2Raw json.RawMessage) bool {
	expected := decodeJSON(expectedRaw)
	switch op {
	case models.OpEquals:
		return equalsCaseInsensitive(actual, expected)
	case models.OpNotEquals:
		return !equalsCaseInsensitive(actual, expected)
	case models.OpGreaterThan, models.OpGreaterThanOrEqual, models.OpLessThan, models.OpLessThanOrEqual:
		af, aok := asFloat(actual)
		ef, eok := asFloat(expected)
		if !aok || !eok {
			return false
		}
		switch op {
		case models.OpGreaterThan:
			return af > ef && !numericEqual(af, ef)
		case models.OpGreaterThanOrEqual:
			return af > ef || numericEqual(af, ef)
		case models.OpLessThan:
			return af < ef && !numericEqual(af, ef)
		case models.OpLessThanOrEqual:
			return af < ef || numericEqual(af, ef)
		}
	case models.OpBetween:
		af, aok := asFloat(actual)
		lo, lok := asFloat(expected)
		hi, hok := asFloat(decodeJSON(expected2Raw))
		if !aok || !lok || !hok {
			return false
		}
		if lo > hi {
			lo, hi = hi, lo // §8 boundary: swapped bounds evaluate as [min,max]
		}
		return af >= lo && af <= hi
	case models.OpContains, models.OpStartsWith, models.OpEndsWith:
		as := strings.ToLower(normalizedString(actual))
		es := strings.ToLower(normalizedString(expected))
		switch op {
		case models.OpContains:
			return strings.Contains(as, es)
		case models.OpStartsWith:
			return strings.HasPrefix(as, es)
		case models.OpEndsWith:
			return strings.HasSuffix(as, es)
		}
	case models.OpChangesTo, models.OpChangesFrom, models.OpAnyChange:
		// Delta operators are meaningless without an old value; a
		// DeviceState condition only sees the current cached value.
		return false
	}
	return false
}

func equalsCaseInsensitive(actual, expected interface{}) bool {
	as, aIsStr := actual.(string)
	es, eIsStr := expected.(string)
	if aIsStr && eIsStr {
		return strings.EqualFold(as, es)
	}
	if af, aok := asFloat(actual); aok {
		if ef, eok := asFloat(expected); eok {
			return numericEqual(af, ef)
		}
	}
	return normalizedString(actual) == normalizedString(expected)
}

// compareSensorReading implements §4.5.2's SensorReading trigger
// predicate: operator applied to numeric old/new values.
func compareSensorReading(op models.Operator, oldVal *float64, newVal float64, expectedRaw json.RawMessage) bool {
	switch op {
	case models.OpAnyChange:
		return oldVal != nil && !numericEqual(*oldVal, newVal)
	case models.OpChangesTo:
		expected, ok := asFloat(decodeJSON(expectedRaw))
		if !ok {
			return false
		}
		notPreviously := oldVal == nil || !numericEqual(*oldVal, expected)
		return numericEqual(newVal, expected) && notPreviously
	default:
		return compareScalar(op, newVal, expectedRaw, nil)
	}
}
