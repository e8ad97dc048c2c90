package automation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"sdhome/internal/models"
)

func raw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestNormalizedString(t *testing.T) {
	assert.Equal(t, "", normalizedString(nil))
	assert.Equal(t, "true", normalizedString(true))
	assert.Equal(t, "false", normalizedString(false))
	assert.Equal(t, "23", normalizedString(float64(23)))
	assert.Equal(t, "23.5", normalizedString(float64(23.5)))
	assert.Equal(t, "ON", normalizedString("ON"))
}

func TestAsFloat_NumericStringWithWhitespace(t *testing.T) {
	f, ok := asFloat(" 23.0 ")
	assert.True(t, ok)
	assert.InDelta(t, 23.0, f, 1e-9)

	_, ok = asFloat("not a number")
	assert.False(t, ok)

	f, ok = asFloat(float64(12))
	assert.True(t, ok)
	assert.Equal(t, 12.0, f)
}

func TestCompareScalar_GreaterThanOrEqual_ToleratesFloatNoise(t *testing.T) {
	// 21.9999991 vs 22 differ by less than numericTolerance.
	assert.True(t, compareScalar(models.OpGreaterThanOrEqual, 21.9999991, raw(22), nil))
	assert.False(t, compareScalar(models.OpGreaterThan, 21.9999991, raw(22), nil))
}

func TestCompareScalar_Between_SwappedBounds(t *testing.T) {
	// §8 boundary case: expected/expected2 given in reverse order still
	// evaluates as the normalized [min, max] range.
	assert.True(t, compareScalar(models.OpBetween, 15.0, raw(30), raw(10)))
	assert.False(t, compareScalar(models.OpBetween, 5.0, raw(30), raw(10)))
}

func TestCompareScalar_Equals_CaseInsensitiveStrings(t *testing.T) {
	assert.True(t, compareScalar(models.OpEquals, "on", raw("ON"), nil))
	assert.False(t, compareScalar(models.OpNotEquals, "on", raw("ON"), nil))
}

func TestCompareScalar_StringOperators(t *testing.T) {
	assert.True(t, compareScalar(models.OpContains, "Living Room Light", raw("room"), nil))
	assert.True(t, compareScalar(models.OpStartsWith, "Living Room Light", raw("living"), nil))
	assert.True(t, compareScalar(models.OpEndsWith, "Living Room Light", raw("light"), nil))
}

func TestCompareScalar_DeltaOperatorsAlwaysFalse(t *testing.T) {
	assert.False(t, compareScalar(models.OpAnyChange, "x", raw("y"), nil))
	assert.False(t, compareScalar(models.OpChangesTo, "x", raw("y"), nil))
	assert.False(t, compareScalar(models.OpChangesFrom, "x", raw("y"), nil))
}

func TestCompareStateChange(t *testing.T) {
	assert.True(t, compareStateChange(models.OpAnyChange, "OFF", "ON", nil))
	assert.False(t, compareStateChange(models.OpAnyChange, "ON", "ON", nil))

	assert.True(t, compareStateChange(models.OpChangesTo, "OFF", "ON", raw("ON")))
	// ChangesTo looks only at the new value; repeats are gated by cooldown.
	assert.True(t, compareStateChange(models.OpChangesTo, "ON", "ON", raw("ON")))

	assert.True(t, compareStateChange(models.OpChangesFrom, "OFF", "ON", raw("OFF")))
}

func TestCompareSensorReading_ChangesTo(t *testing.T) {
	old := 21.0
	assert.True(t, compareSensorReading(models.OpChangesTo, &old, 22.0, raw(22)))
	// Already at the target value: not a fresh transition.
	already := 22.0
	assert.False(t, compareSensorReading(models.OpChangesTo, &already, 22.0, raw(22)))
}

func TestCompareSensorReading_AnyChangeRequiresOldValue(t *testing.T) {
	assert.False(t, compareSensorReading(models.OpAnyChange, nil, 22.0, nil))
	old := 21.0
	assert.True(t, compareSensorReading(models.OpAnyChange, &old, 22.0, nil))
}

func TestNumericEqual_Tolerance(t *testing.T) {
	assert.True(t, numericEqual(22.0, 22.0009))
	assert.False(t, numericEqual(22.0, 22.01))
}
