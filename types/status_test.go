package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsValid(t *testing.T) {
	assert.True(t, StatusPassed.IsValid())
	assert.True(t, StatusFailed.IsValid())
	assert.True(t, StatusSkipped.IsValid())
	assert.False(t, Status("pass").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestTriState(t *testing.T) {
	var unset TriState
	assert.Equal(t, Unset, unset)
	assert.False(t, unset.IsSet())
	assert.False(t, unset.IsTrue())
	assert.Equal(t, "unset", unset.String())

	assert.Equal(t, True, TriStateOf(true))
	assert.Equal(t, False, TriStateOf(false))
	assert.True(t, True.IsTrue())
	assert.True(t, False.IsSet())
	assert.False(t, False.IsTrue())
	assert.Equal(t, "false", False.String())
}

func TestCallbackType_String(t *testing.T) {
	tests := []struct {
		typ  CallbackType
		want string
		each bool
	}{
		{OnBegin, "onBegin", false},
		{OnEnd, "onEnd", false},
		{OnEachBegin, "onEachBegin", true},
		{OnEachEnd, "onEachEnd", true},
		{OnSuccess, "onSuccess", false},
		{OnFailure, "onFailure", false},
		{OnEachSuccess, "onEachSuccess", true},
		{OnEachFailure, "onEachFailure", true},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
			assert.Equal(t, tt.each, tt.typ.IsEach())
		})
	}
	assert.Equal(t, "CallbackType(42)", CallbackType(42).String())
	assert.Len(t, CallbackTypes, 8)
}
