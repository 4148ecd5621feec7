package cohort

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"kind only", &Error{Kind: ErrTypeNotKnown}, "type not known"},
		{"op and id", Errorf(ErrInstanceNotKnown, "GetEntityDetail", "guid-1", "no entity"), "GetEntityDetail: instance not known [guid-1]: no entity"},
		{"wrapped cause", Wrap("AddEntity", "", cause), "AddEntity: repository error: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap("op", "id", nil))
	assert.Nil(t, WrapKind(ErrProperty, "op", "id", nil))

	cause := errors.New("disk full")
	err := Wrap("UpdateEntityProperties", "guid-1", cause)
	assert.ErrorIs(t, err, ErrRepository)
	assert.ErrorIs(t, err, cause)

	kinded := Errorf(ErrTypeConflict, "AddTypeDef", "Widget", "differs")
	assert.Same(t, kinded, Wrap("outer", "", kinded), "kinded errors pass through")
	assert.Same(t, kinded, Wrap("outer", "", fmt.Errorf("context: %w", kinded)).(*Error))
}

func TestKindOf(t *testing.T) {
	inner := Errorf(ErrInstanceNotKnown, "GetEntityDetail", "guid-1", "missing")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"plain", errors.New("boom"), nil},
		{"bare sentinel", ErrPaging, ErrPaging},
		{"wrapped sentinel", fmt.Errorf("find: %w", ErrNotImplemented), ErrNotImplemented},
		{"cohort error", inner, ErrInstanceNotKnown},
		{"outermost kind wins", WrapKind(ErrRepository, "Refresh", "guid-1", inner), ErrRepository},
		{"behind fmt wrapping", fmt.Errorf("api: %w", inner), ErrInstanceNotKnown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsInvalidParameter(Errorf(ErrInvalidParameter, "op", "", "user id is required")))
	assert.True(t, IsTypeNotKnown(Errorf(ErrTypeNotKnown, "op", "Widget", "")))
	assert.True(t, IsTypeConflict(Errorf(ErrTypeConflict, "op", "Widget", "")))
	assert.True(t, IsInstanceNotKnown(Errorf(ErrInstanceNotKnown, "op", "guid", "")))
	assert.True(t, IsNotImplemented(Errorf(ErrNotImplemented, "op", "", "")))
	assert.False(t, IsTypeNotKnown(Errorf(ErrInstanceNotKnown, "op", "guid", "")))
}
