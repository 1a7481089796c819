package daemon

import (
	"github.com/jmylchreest/retrotoast/internal/model"
)

// IDMap maps D-Bus notification ids to toast ids and back. It is owned by
// the event loop and not safe for concurrent use.
type IDMap struct {
	byDBusID  map[uint32]model.ID
	byToastID map[model.ID]uint32
}

// NewIDMap creates an empty IDMap.
func NewIDMap() *IDMap {
	return &IDMap{
		byDBusID:  make(map[uint32]model.ID),
		byToastID: make(map[model.ID]uint32),
	}
}

// Register links dbusID to toastID, dropping any previous link of either.
func (m *IDMap) Register(dbusID uint32, toastID model.ID) {
	m.RemoveByDBusID(dbusID)
	m.RemoveByToastID(toastID)
	m.byDBusID[dbusID] = toastID
	m.byToastID[toastID] = dbusID
}

// ToastID returns the toast shown for dbusID.
func (m *IDMap) ToastID(dbusID uint32) (model.ID, bool) {
	id, ok := m.byDBusID[dbusID]
	return id, ok
}

// DBusID returns the D-Bus id a toast was created for.
func (m *IDMap) DBusID(toastID model.ID) (uint32, bool) {
	id, ok := m.byToastID[toastID]
	return id, ok
}

// RemoveByDBusID forgets dbusID and its toast.
func (m *IDMap) RemoveByDBusID(dbusID uint32) {
	if toastID, ok := m.byDBusID[dbusID]; ok {
		delete(m.byToastID, toastID)
		delete(m.byDBusID, dbusID)
	}
}

// RemoveByToastID forgets toastID and its D-Bus id.
func (m *IDMap) RemoveByToastID(toastID model.ID) {
	if dbusID, ok := m.byToastID[toastID]; ok {
		delete(m.byDBusID, dbusID)
		delete(m.byToastID, toastID)
	}
}

// Count returns the number of tracked notifications.
func (m *IDMap) Count() int {
	return len(m.byDBusID)
}
