// Package dbus implements the org.freedesktop.Notifications D-Bus interface.
// Notify and CloseNotification are forwarded to handlers; the daemon turns
// them into toasts and reports each retirement back as NotificationClosed.
package dbus
