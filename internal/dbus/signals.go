package dbus

import (
	"fmt"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// EmitNotificationClosed emits the NotificationClosed signal.
func (s *NotificationServer) EmitNotificationClosed(id uint32, reason CloseReason) error {
	s.mu.RLock()
	emit := s.emit
	s.mu.RUnlock()

	if emit == nil {
		return ErrNotConnected
	}

	if err := emit.Emit(DBusPath, DBusInterface+".NotificationClosed", id, uint32(reason)); err != nil {
		return fmt.Errorf("failed to emit NotificationClosed signal: %w", err)
	}

	s.logger.Debug("emitted NotificationClosed signal", "id", id, "reason", reason.String())
	return nil
}

// Closed reports that the toast for id has been retired. Ids that are no
// longer active are ignored so each notification is closed once.
func (s *NotificationServer) Closed(id uint32, reason model.CloseReason) error {
	s.mu.Lock()
	active := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()

	if !active {
		return nil
	}
	return s.EmitNotificationClosed(id, CloseReasonFor(reason))
}
