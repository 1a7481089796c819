package dbus

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/retrotoast/internal/icon"
	"github.com/jmylchreest/retrotoast/internal/model"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the notification protocol.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// CloseReasonFor maps a toast close reason onto the wire value.
// Eviction and shutdown have no freedesktop equivalent.
func CloseReasonFor(r model.CloseReason) CloseReason {
	switch r {
	case model.ReasonExpired:
		return CloseReasonExpired
	case model.ReasonDismissed:
		return CloseReasonDismissed
	case model.ReasonCancelled:
		return CloseReasonClosed
	default:
		return CloseReasonUndefined
	}
}

// Urgency levels from the urgency hint.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// DBusNotification represents an incoming D-Bus Notify call.
// It contains the raw parameters from the org.freedesktop.Notifications.Notify method.
type DBusNotification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs; not displayed
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

func hint[T any](hints map[string]dbus.Variant, name string) (T, bool) {
	var zero T
	v, ok := hints[name]
	if !ok {
		return zero, false
	}
	t, ok := v.Value().(T)
	return t, ok
}

// Urgency extracts the urgency hint, defaulting to UrgencyNormal.
func (n *DBusNotification) Urgency() int {
	if b, ok := hint[byte](n.Hints, "urgency"); ok {
		return int(b)
	}
	return UrgencyNormal
}

// SoundFile extracts the sound-file hint.
func (n *DBusNotification) SoundFile() string {
	s, _ := hint[string](n.Hints, "sound-file")
	return s
}

// SuppressSound returns true if the suppress-sound hint is set.
func (n *DBusNotification) SuppressSound() bool {
	b, _ := hint[bool](n.Hints, "suppress-sound")
	return b
}

// ImagePath extracts the image-path hint, falling back to app_icon.
// Only local file paths are returned; themed icon names are ignored.
func (n *DBusNotification) ImagePath() string {
	for _, candidate := range []string{n.hintString("image-path", "image_path"), n.AppIcon} {
		if p := localPath(candidate); p != "" {
			return p
		}
	}
	return ""
}

func (n *DBusNotification) hintString(names ...string) string {
	for _, name := range names {
		if s, ok := hint[string](n.Hints, name); ok && s != "" {
			return s
		}
	}
	return ""
}

func localPath(s string) string {
	if strings.HasPrefix(s, "file://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		return u.Path
	}
	if filepath.IsAbs(s) {
		return s
	}
	return ""
}

// ErrImageData is returned when an image-data hint has the wrong shape.
var ErrImageData = errors.New("malformed image-data hint")

// ImageData extracts the image-data hint (or its deprecated spellings).
// The wire format is (iiibiiay): width, height, rowstride, has_alpha,
// bits_per_sample, channels, data.
func (n *DBusNotification) ImageData() (*icon.Raw, error) {
	for _, name := range []string{"image-data", "image_data", "icon_data"} {
		v, ok := n.Hints[name]
		if !ok {
			continue
		}
		return parseImageData(v.Value())
	}
	return nil, nil
}

func parseImageData(v any) (*icon.Raw, error) {
	fields, ok := v.([]any)
	if !ok || len(fields) != 7 {
		return nil, fmt.Errorf("%w: got %T", ErrImageData, v)
	}

	ints := make([]int, 0, 5)
	for _, i := range []int{0, 1, 2, 4, 5} {
		n, ok := fields[i].(int32)
		if !ok {
			return nil, fmt.Errorf("%w: field %d is %T", ErrImageData, i, fields[i])
		}
		ints = append(ints, int(n))
	}
	hasAlpha, ok := fields[3].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: has_alpha is %T", ErrImageData, fields[3])
	}
	data, ok := fields[6].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: data is %T", ErrImageData, fields[6])
	}

	return &icon.Raw{
		Width:         ints[0],
		Height:        ints[1],
		Rowstride:     ints[2],
		HasAlpha:      hasAlpha,
		BitsPerSample: ints[3],
		Channels:      ints[4],
		Data:          data,
	}, nil
}

// Timeout converts expire_timeout. Critical notifications that ask for the
// server default stay until dismissed.
func (n *DBusNotification) Timeout() model.Timeout {
	switch {
	case n.ExpireTimeout < 0 && n.Urgency() == UrgencyCritical:
		return model.TimeoutNever
	case n.ExpireTimeout < 0:
		return model.TimeoutDefault
	case n.ExpireTimeout == 0:
		return model.TimeoutNever
	default:
		return model.TimeoutAfter(time.Duration(n.ExpireTimeout) * time.Millisecond)
	}
}

// ToNotification builds the toast content. Icon problems are returned
// alongside a usable notification rather than failing it; iconSize is the
// preferred edge for multi-resolution files.
func (n *DBusNotification) ToNotification(iconSize int) (model.Notification, error) {
	out := model.Notification{
		AppName:   n.AppName,
		Title:     n.Summary,
		Body:      n.Body,
		Timeout:   n.Timeout(),
		Silent:    n.SuppressSound(),
		SoundFile: n.SoundFile(),
	}

	raw, err := n.ImageData()
	if err != nil {
		return out, err
	}
	if raw != nil {
		ic, err := icon.FromRaw(*raw)
		if err != nil {
			return out, fmt.Errorf("failed to convert image-data: %w", err)
		}
		out.Icon = ic
		return out, nil
	}

	if path := n.ImagePath(); path != "" {
		ic, err := icon.Load(path, iconSize)
		if err != nil {
			return out, err
		}
		out.Icon = ic
	}
	return out, nil
}

// ServerCapabilities lists the capabilities advertised by retrotoast.
var ServerCapabilities = []string{
	"body",        // Support body text
	"icon-static", // Support static icons
	"sound",       // Play sounds
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "retrotoast",
		Vendor:      "retrotoast",
		Version:     "dev",
		SpecVersion: "1.2",
	}
}
