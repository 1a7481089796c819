package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the bus name to claim.
	DBusBusName = "org.freedesktop.Notifications"
)

// ErrNotConnected is returned when emitting without a bus connection.
var ErrNotConnected = errors.New("not connected to D-Bus")

// ErrNameTaken is returned by Start when another daemon owns the bus name.
var ErrNameTaken = errors.New("bus name already taken")

// Actions are not advertised, so ActionInvoked is left out.
const introspectXML = `<node>
	<interface name="` + DBusInterface + `">
		<method name="GetCapabilities">
			<arg name="capabilities" type="as" direction="out"/>
		</method>
		<method name="GetServerInformation">
			<arg name="name" type="s" direction="out"/>
			<arg name="vendor" type="s" direction="out"/>
			<arg name="version" type="s" direction="out"/>
			<arg name="spec_version" type="s" direction="out"/>
		</method>
		<method name="Notify">
			<arg name="app_name" type="s" direction="in"/>
			<arg name="replaces_id" type="u" direction="in"/>
			<arg name="app_icon" type="s" direction="in"/>
			<arg name="summary" type="s" direction="in"/>
			<arg name="body" type="s" direction="in"/>
			<arg name="actions" type="as" direction="in"/>
			<arg name="hints" type="a{sv}" direction="in"/>
			<arg name="expire_timeout" type="i" direction="in"/>
			<arg name="id" type="u" direction="out"/>
		</method>
		<method name="CloseNotification">
			<arg name="id" type="u" direction="in"/>
		</method>
		<signal name="NotificationClosed">
			<arg name="id" type="u"/>
			<arg name="reason" type="u"/>
		</signal>
	</interface>` + introspect.IntrospectDataString + `</node>`

// NotificationHandler is called when a new notification is received.
// It runs on the D-Bus dispatch goroutine and must not block.
type NotificationHandler func(notification *DBusNotification, id uint32)

// CloseHandler is called when CloseNotification is requested for a live id.
type CloseHandler func(id uint32)

// emitter is the part of *dbus.Conn used for signals.
type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// NotificationServer implements the org.freedesktop.Notifications D-Bus
// interface. Method calls only track ids and hand requests to the
// handlers; showing and closing toasts is the caller's business.
type NotificationServer struct {
	logger *slog.Logger
	info   ServerInfo

	onNotify NotificationHandler
	onClose  CloseHandler

	mu     sync.RWMutex
	conn   *dbus.Conn
	emit   emitter
	lastID uint32
	active map[uint32]bool
}

// NewNotificationServer creates a server that is not yet on the bus.
func NewNotificationServer(logger *slog.Logger) *NotificationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationServer{
		logger: logger,
		info:   DefaultServerInfo(),
		active: make(map[uint32]bool),
	}
}

// SetNotifyHandler sets the handler called when a notification is received.
func (s *NotificationServer) SetNotifyHandler(handler NotificationHandler) {
	s.onNotify = handler
}

// SetCloseHandler sets the handler called when CloseNotification is requested.
func (s *NotificationServer) SetCloseHandler(handler CloseHandler) {
	s.onClose = handler
}

// SetServerInfo sets the server information returned by GetServerInformation.
func (s *NotificationServer) SetServerInfo(info ServerInfo) {
	s.info = info
}

// Start exports the server on the session bus and claims the well-known
// name. An already running notification daemon keeps the name and Start
// fails with ErrNameTaken.
func (s *NotificationServer) Start() error {
	s.mu.RLock()
	started := s.conn != nil
	s.mu.RUnlock()
	if started {
		return errors.New("server already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export %s: %w", DBusInterface, err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), DBusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Export(nil, DBusPath, DBusInterface)
		return fmt.Errorf("%s: %w", DBusBusName, ErrNameTaken)
	}

	s.mu.Lock()
	s.conn = conn
	s.emit = conn
	s.mu.Unlock()

	s.logger.Info("D-Bus notification server started", "name", DBusBusName)
	return nil
}

// Stop releases the bus name and unexports the object. The shared session
// connection stays open for other users in the process.
func (s *NotificationServer) Stop() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.emit = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if _, err := conn.ReleaseName(DBusBusName); err != nil {
		s.logger.Warn("failed to release bus name", "error", err)
	}
	_ = conn.Export(nil, DBusPath, DBusInterface)

	s.logger.Info("D-Bus notification server stopped")
	return nil
}

// GetCapabilities is the D-Bus method GetCapabilities() -> as.
func (s *NotificationServer) GetCapabilities() ([]string, *dbus.Error) {
	return ServerCapabilities, nil
}

// GetServerInformation is the D-Bus method GetServerInformation() -> (ssss).
func (s *NotificationServer) GetServerInformation() (string, string, string, string, *dbus.Error) {
	return s.info.Name, s.info.Vendor, s.info.Version, s.info.SpecVersion, nil
}

// Notify is the D-Bus method Notify(susssasa{sv}i) -> u. A replaces_id
// naming a live notification keeps that id; anything else gets a new one.
func (s *NotificationServer) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	s.mu.Lock()
	id := replacesID
	if id == 0 || !s.active[id] {
		s.lastID++
		if s.lastID == 0 {
			s.lastID++
		}
		id = s.lastID
	}
	s.active[id] = true
	s.mu.Unlock()

	s.logger.Debug("notify", "app", appName, "id", id, "replaces", replacesID)

	if s.onNotify != nil {
		s.onNotify(&DBusNotification{
			AppName:       appName,
			ReplacesID:    replacesID,
			AppIcon:       appIcon,
			Summary:       summary,
			Body:          body,
			Actions:       actions,
			Hints:         hints,
			ExpireTimeout: expireTimeout,
		}, id)
	}
	return id, nil
}

// CloseNotification is the D-Bus method CloseNotification(u). The
// NotificationClosed signal follows once the toast is actually gone.
func (s *NotificationServer) CloseNotification(id uint32) *dbus.Error {
	s.logger.Debug("close requested", "id", id)
	if s.IsActive(id) && s.onClose != nil {
		s.onClose(id)
	}
	return nil
}

// MarkClosed forgets id without emitting anything.
func (s *NotificationServer) MarkClosed(id uint32) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// IsActive reports whether id names a notification that has not closed.
func (s *NotificationServer) IsActive(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[id]
}
