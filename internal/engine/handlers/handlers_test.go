package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

func newTestRegistry() (*moduleregistry.Registry, *moduleregistry.EventDef) {
	reg := moduleregistry.New()
	ev := reg.DefineEvent("thing_happened")
	return reg, ev
}

func TestOnUnknownEventReturnsNoHandler(t *testing.T) {
	reg, _ := newTestRegistry()
	r := New(reg)

	id := r.On("no_such_event", func(*property.Property) {})
	assert.Equal(t, NoHandler, id)
}

func TestDispatchInvokesHandlersInRegistrationOrder(t *testing.T) {
	reg, ev := newTestRegistry()
	r := New(reg)

	var order []int
	r.On("thing_happened", func(*property.Property) { order = append(order, 1) })
	r.On("thing_happened", func(*property.Property) { order = append(order, 2) })
	r.On("thing_happened", func(*property.Property) { order = append(order, 3) })

	prop := property.New(0)
	prop.PushEvent(ev.ID)
	r.Dispatch(prop)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestClearRemovesHandlerFromFutureDispatches(t *testing.T) {
	reg, ev := newTestRegistry()
	r := New(reg)

	calls := 0
	id := r.On("thing_happened", func(*property.Property) { calls++ })
	require.True(t, r.Clear(id))

	prop := property.New(0)
	prop.PushEvent(ev.ID)
	r.Dispatch(prop)

	assert.Equal(t, 0, calls)
}

func TestClearUnknownIDReturnsFalse(t *testing.T) {
	reg, _ := newTestRegistry()
	r := New(reg)
	assert.False(t, r.Clear(HandlerID(999)))
}

func TestDispatchSkipsEventsWithNoHandlers(t *testing.T) {
	reg, ev := newTestRegistry()
	r := New(reg)

	prop := property.New(0)
	prop.PushEvent(ev.ID)

	assert.NotPanics(t, func() { r.Dispatch(prop) })
}

func TestClearDuringDispatchStillFiresThatFiring(t *testing.T) {
	// Snapshot semantics: a Clear that races a Dispatch already iterating
	// that event's handlers does not retroactively cancel the in-flight
	// firing, only subsequent ones.
	reg, ev := newTestRegistry()
	r := New(reg)

	var secondID HandlerID
	fired := 0
	r.On("thing_happened", func(*property.Property) {
		r.Clear(secondID)
	})
	secondID = r.On("thing_happened", func(*property.Property) {
		fired++
	})

	prop := property.New(0)
	prop.PushEvent(ev.ID)
	r.Dispatch(prop)
	assert.Equal(t, 1, fired, "handler cleared mid-dispatch still fires in that dispatch")

	r.Dispatch(prop)
	assert.Equal(t, 1, fired, "cleared handler must not fire on a later dispatch")
}
