package moduleregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := New()
	a := r.Register("a", nil)
	b := r.Register("b", nil)
	assert.Equal(t, ModuleID(0), a)
	assert.Equal(t, ModuleID(1), b)
}

func TestLookupModuleUnknownReturnsNone(t *testing.T) {
	r := New()
	assert.Equal(t, NONE, r.LookupModule("nope"))
}

func TestDefineParamIsIdempotent(t *testing.T) {
	r := New()
	p1 := r.DefineParam("seq")
	p2 := r.DefineParam("seq")
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, r.ParamCount())
}

func TestDefineEventIsIdempotent(t *testing.T) {
	r := New()
	e1 := r.DefineEvent("closed")
	e2 := r.DefineEvent("closed")
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, r.EventCount())
}

func TestModuleOutOfRangeReturnsNil(t *testing.T) {
	r := New()
	assert.Nil(t, r.Module(ModuleID(5)))
	assert.Nil(t, r.Module(NONE))
}
