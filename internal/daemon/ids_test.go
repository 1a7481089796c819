package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/retrotoast/internal/model"
)

func TestIDMap(t *testing.T) {
	m := NewIDMap()
	m.Register(1, "a")
	m.Register(2, "b")

	id, ok := m.ToastID(1)
	assert.True(t, ok)
	assert.Equal(t, model.ID("a"), id)

	dbusID, ok := m.DBusID("b")
	assert.True(t, ok)
	assert.Equal(t, uint32(2), dbusID)
	assert.Equal(t, 2, m.Count())

	m.RemoveByToastID("a")
	_, ok = m.ToastID(1)
	assert.False(t, ok)

	m.RemoveByDBusID(2)
	_, ok = m.DBusID("b")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

func TestIDMap_RegisterReplacesLinks(t *testing.T) {
	m := NewIDMap()
	m.Register(1, "a")
	m.Register(1, "b")

	_, ok := m.DBusID("a")
	assert.False(t, ok, "old toast is unlinked")
	id, _ := m.ToastID(1)
	assert.Equal(t, model.ID("b"), id)

	m.Register(2, "b")
	_, ok = m.ToastID(1)
	assert.False(t, ok, "toast moved to the new id")
	assert.Equal(t, 1, m.Count())
}
