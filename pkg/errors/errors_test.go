package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeConnection, "dial failed")
	outer := Wrap(inner, ErrorTypeState, "loading state")

	require.NotNil(t, outer)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, stderrors.Is(outer, inner))
	assert.Equal(t, "state: loading state: connection: dial failed", outer.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeData, "nothing"))
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"structured", New(ErrorTypeConfig, "x"), ErrorTypeConfig},
		{"plain", stderrors.New("x"), ErrorTypeInternal},
		{"wrapped outermost wins", Wrap(New(ErrorTypeData, "x"), ErrorTypeFile, "y"), ErrorTypeFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestConformanceErrorMessage(t *testing.T) {
	err := NewConformance("requests", "req_1", []string{"a: bad", "b: worse"})

	assert.True(t, IsType(err, ErrorTypeConformance))
	assert.Contains(t, err.Error(), `stream "requests"`)
	assert.Contains(t, err.Error(), "a: bad; b: worse")
	assert.Equal(t, "req_1", err.Details["record_id"])
}
