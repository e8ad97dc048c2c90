package automation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBoolVal(t *testing.T) {
	b := boolVal(true)
	assert.NotNil(t, b)
	assert.True(t, *b)

	assert.Nil(t, boolVal("ON"))
	assert.Nil(t, boolVal(nil))
}

func TestDerefStr(t *testing.T) {
	assert.Equal(t, "", derefStr(nil))
	s := "hello"
	assert.Equal(t, "hello", derefStr(&s))
}

func TestDerefUUID(t *testing.T) {
	assert.Equal(t, "", derefUUID(nil))
	id := uuid.New()
	assert.Equal(t, id.String(), derefUUID(&id))
}
