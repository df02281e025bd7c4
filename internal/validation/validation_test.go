package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Status   string `validate:"omitempty,taskstatus"`
	Priority string `validate:"omitempty,taskpriority"`
	Type     string `validate:"omitempty,tasktype"`
	Email    string `validate:"required,email"`
}

func TestCustomTags(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(sample{Status: "in-progress", Priority: "med", Type: "errand", Email: "a@b.co"}))
	assert.NoError(t, v.Struct(sample{Email: "a@b.co"}))

	err := v.Struct(sample{Status: "blocked", Priority: "critical", Type: "chore", Email: "nope"})
	require.Error(t, err)

	msg := Describe(err)
	assert.Contains(t, msg, "Status must be one of todo, in-progress, done")
	assert.Contains(t, msg, "Priority must be one of urgent, high, med, low, none")
	assert.Contains(t, msg, "Email must be a valid email address")
	assert.NotContains(t, msg, "Type")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("done", "taskstatus"))
	assert.Error(t, Var("finished", "taskstatus"))
	assert.NoError(t, Var("kid@example.com", "email"))
	assert.Error(t, Var("kid@", "email"))
}

func TestRegisterGin(t *testing.T) {
	assert.NoError(t, RegisterGin())
}
