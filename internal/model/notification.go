// Package model defines the core data structures for retrotoast.
package model

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTimeout is the lifetime of a toast submitted with TimeoutDefault
// when no configuration overrides it.
const DefaultTimeout = 5 * time.Second

// ID identifies a toast for its whole lifetime. It stays stable while the
// platform window handle behind it is created and destroyed.
type ID string

// NewID returns a fresh ULID-based toast identifier.
func NewID() (ID, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return ID(id.String()), nil
}

// Validation errors.
var (
	ErrIconSize      = errors.New("icon buffer length does not match width*height*4")
	ErrIconDimension = errors.New("icon width and height must be positive")
	ErrEmptyContent  = errors.New("notification needs a title or a body")
)

// Icon is a raw 32-bit RGBA pixel buffer with straight (non-premultiplied) alpha.
type Icon struct {
	Pix    []byte
	Width  int
	Height int
}

// Validate checks that the buffer holds exactly Width*Height pixels.
func (i *Icon) Validate() error {
	if i.Width <= 0 || i.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrIconDimension, i.Width, i.Height)
	}
	if len(i.Pix) != i.Width*i.Height*4 {
		return fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ErrIconSize, i.Width, i.Height, i.Width*i.Height*4, len(i.Pix))
	}
	return nil
}

// Clone returns a deep copy of the icon.
func (i *Icon) Clone() *Icon {
	if i == nil {
		return nil
	}
	pix := make([]byte, len(i.Pix))
	copy(pix, i.Pix)
	return &Icon{Pix: pix, Width: i.Width, Height: i.Height}
}

// Notification is the caller-supplied content of one toast.
// The display manager keeps its own copy; callers may reuse theirs.
type Notification struct {
	AppName   string
	Title     string
	Body      string
	Icon      *Icon
	Silent    bool
	Timeout   Timeout
	SoundFile string // Overrides the configured sound for this toast
}

// Clone returns a deep copy of the notification.
func (n Notification) Clone() Notification {
	n.Icon = n.Icon.Clone()
	return n
}

// Validate checks content that would make a toast meaningless.
// Icon problems are deliberately not reported here; they degrade rendering.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Body) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Timeout describes how long a toast stays on screen.
// The zero value is TimeoutDefault.
type Timeout struct {
	kind     timeoutKind
	duration time.Duration
}

type timeoutKind int

const (
	timeoutDefault timeoutKind = iota
	timeoutNever
	timeoutAfter
)

var (
	// TimeoutDefault expires according to the configured default.
	TimeoutDefault = Timeout{kind: timeoutDefault}
	// TimeoutNever does not expire; the user has to close the toast.
	TimeoutNever = Timeout{kind: timeoutNever}
)

// TimeoutAfter expires after d. Non-positive durations mean TimeoutNever.
func TimeoutAfter(d time.Duration) Timeout {
	if d <= 0 {
		return TimeoutNever
	}
	return Timeout{kind: timeoutAfter, duration: d}
}

// IsNever reports whether the toast never expires on its own.
func (t Timeout) IsNever() bool {
	return t.kind == timeoutNever
}

// IsDefault reports whether the configured default applies.
func (t Timeout) IsDefault() bool {
	return t.kind == timeoutDefault
}

// Resolve returns the concrete lifetime, substituting def for TimeoutDefault.
// Zero means never expire.
func (t Timeout) Resolve(def time.Duration) time.Duration {
	switch t.kind {
	case timeoutNever:
		return 0
	case timeoutAfter:
		return t.duration
	default:
		return def
	}
}

// String returns the textual form accepted by ParseTimeout.
func (t Timeout) String() string {
	switch t.kind {
	case timeoutNever:
		return "never"
	case timeoutAfter:
		return t.duration.String()
	default:
		return "default"
	}
}

// ParseTimeout parses "default", "never", Go durations ("5s") or integer
// milliseconds. "0" means never, "-1" means default, matching the
// freedesktop expire_timeout convention.
func ParseTimeout(s string) (Timeout, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "default":
		return TimeoutDefault, nil
	case "never":
		return TimeoutNever, nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch {
		case ms < 0:
			return TimeoutDefault, nil
		case ms == 0:
			return TimeoutNever, nil
		default:
			return TimeoutAfter(time.Duration(ms) * time.Millisecond), nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return TimeoutDefault, fmt.Errorf("invalid timeout %q: must be 'default', 'never', a duration like '5s' or milliseconds: %w", s, err)
	}
	return TimeoutAfter(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timeout) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeout(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalJSON accepts either a string for ParseTimeout or a bare number
// of milliseconds.
func (t *Timeout) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TimeoutDefault
		return nil
	}
	var ms json.Number
	if err := json.Unmarshal(data, &ms); err == nil {
		return t.UnmarshalText([]byte(ms.String()))
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid timeout %s: %w", data, err)
	}
	return t.UnmarshalText([]byte(s))
}

// MarshalText implements encoding.TextMarshaler.
func (t Timeout) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
