package dbus

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/retrotoast/internal/model"
)

func TestCloseReasonString(t *testing.T) {
	tests := []struct {
		reason   CloseReason
		expected string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}

func TestCloseReasonFor(t *testing.T) {
	assert.Equal(t, CloseReasonExpired, CloseReasonFor(model.ReasonExpired))
	assert.Equal(t, CloseReasonDismissed, CloseReasonFor(model.ReasonDismissed))
	assert.Equal(t, CloseReasonClosed, CloseReasonFor(model.ReasonCancelled))
	assert.Equal(t, CloseReasonUndefined, CloseReasonFor(model.ReasonEvicted))
	assert.Equal(t, CloseReasonUndefined, CloseReasonFor(model.ReasonShutdown))
}

func TestUrgency(t *testing.T) {
	tests := []struct {
		name     string
		hints    map[string]dbus.Variant
		expected int
	}{
		{"no hint", nil, UrgencyNormal},
		{"low", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(0))}, UrgencyLow},
		{"critical", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(2))}, UrgencyCritical},
		{"wrong type returns normal", map[string]dbus.Variant{"urgency": dbus.MakeVariant("high")}, UrgencyNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &DBusNotification{Hints: tt.hints}
			assert.Equal(t, tt.expected, n.Urgency())
		})
	}
}

func TestSoundHints(t *testing.T) {
	n := &DBusNotification{
		Hints: map[string]dbus.Variant{
			"sound-file":     dbus.MakeVariant("/usr/share/sounds/notify.wav"),
			"suppress-sound": dbus.MakeVariant(true),
		},
	}
	assert.Equal(t, "/usr/share/sounds/notify.wav", n.SoundFile())
	assert.True(t, n.SuppressSound())

	n.Hints = nil
	assert.Equal(t, "", n.SoundFile())
	assert.False(t, n.SuppressSound())
}

func TestTimeout(t *testing.T) {
	critical := map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(2))}

	tests := []struct {
		name     string
		expire   int32
		hints    map[string]dbus.Variant
		expected model.Timeout
	}{
		{"server default", -1, nil, model.TimeoutDefault},
		{"never", 0, nil, model.TimeoutNever},
		{"milliseconds", 2500, nil, model.TimeoutAfter(2500 * time.Millisecond)},
		{"critical default never expires", -1, critical, model.TimeoutNever},
		{"critical explicit timeout honoured", 1000, critical, model.TimeoutAfter(time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &DBusNotification{ExpireTimeout: tt.expire, Hints: tt.hints}
			assert.Equal(t, tt.expected, n.Timeout())
		})
	}
}

func TestImagePath(t *testing.T) {
	tests := []struct {
		name     string
		appIcon  string
		hints    map[string]dbus.Variant
		expected string
	}{
		{"none", "", nil, ""},
		{"themed name ignored", "mail-unread", nil, ""},
		{"absolute app icon", "/usr/share/icons/a.png", nil, "/usr/share/icons/a.png"},
		{"file uri", "file:///tmp/b.png", nil, "/tmp/b.png"},
		{"hint wins", "/tmp/app.png", map[string]dbus.Variant{"image-path": dbus.MakeVariant("/tmp/hint.png")}, "/tmp/hint.png"},
		{"deprecated hint", "", map[string]dbus.Variant{"image_path": dbus.MakeVariant("/tmp/old.png")}, "/tmp/old.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &DBusNotification{AppIcon: tt.appIcon, Hints: tt.hints}
			assert.Equal(t, tt.expected, n.ImagePath())
		})
	}
}

func imageDataVariant(w, h, stride int32, alpha bool, channels int32, data []byte) dbus.Variant {
	return dbus.MakeVariant([]any{w, h, stride, alpha, int32(8), channels, data})
}

func TestImageData(t *testing.T) {
	n := &DBusNotification{Hints: map[string]dbus.Variant{
		"image-data": imageDataVariant(1, 1, 4, true, 4, []byte{1, 2, 3, 4}),
	}}
	raw, err := n.ImageData()
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, 1, raw.Width)
	assert.True(t, raw.HasAlpha)
	assert.Equal(t, 8, raw.BitsPerSample)

	n.Hints = map[string]dbus.Variant{"icon_data": imageDataVariant(2, 1, 6, false, 3, make([]byte, 6))}
	raw, err = n.ImageData()
	require.NoError(t, err)
	assert.Equal(t, 2, raw.Width)

	n.Hints = map[string]dbus.Variant{"image-data": dbus.MakeVariant("nope")}
	_, err = n.ImageData()
	assert.ErrorIs(t, err, ErrImageData)

	n.Hints = nil
	raw, err = n.ImageData()
	assert.NoError(t, err)
	assert.Nil(t, raw)
}

func TestToNotification(t *testing.T) {
	n := &DBusNotification{
		AppName:       "Mail",
		Summary:       "New message",
		Body:          "from Alice",
		ExpireTimeout: 3000,
		Hints: map[string]dbus.Variant{
			"image-data":     imageDataVariant(1, 1, 3, false, 3, []byte{10, 20, 30}),
			"suppress-sound": dbus.MakeVariant(true),
		},
	}

	out, err := n.ToNotification(16)
	require.NoError(t, err)
	assert.Equal(t, "Mail", out.AppName)
	assert.Equal(t, "New message", out.Title)
	assert.Equal(t, "from Alice", out.Body)
	assert.True(t, out.Silent)
	assert.Equal(t, model.TimeoutAfter(3*time.Second), out.Timeout)
	require.NotNil(t, out.Icon)
	assert.Equal(t, []byte{10, 20, 30, 255}, out.Icon.Pix)
}

func TestToNotification_IconFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	out, err := (&DBusNotification{Summary: "hi", AppIcon: path}).ToNotification(16)
	require.NoError(t, err)
	require.NotNil(t, out.Icon)
	assert.Equal(t, 2, out.Icon.Width)

	out, err = (&DBusNotification{Summary: "hi", AppIcon: filepath.Join(t.TempDir(), "gone.png")}).ToNotification(16)
	assert.Error(t, err)
	assert.Equal(t, "hi", out.Title, "content survives an icon failure")
	assert.Nil(t, out.Icon)
}

type recordedSignal struct {
	name   string
	values []any
}

type fakeEmitter struct {
	signals []recordedSignal
	err     error
}

func (e *fakeEmitter) Emit(_ dbus.ObjectPath, name string, values ...any) error {
	e.signals = append(e.signals, recordedSignal{name, values})
	return e.err
}

func newTestServer() (*NotificationServer, *fakeEmitter) {
	s := NewNotificationServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := &fakeEmitter{}
	s.emit = e
	return s, e
}

func TestServer_NotifyAssignsIDs(t *testing.T) {
	s, _ := newTestServer()

	var got []uint32
	s.SetNotifyHandler(func(n *DBusNotification, id uint32) { got = append(got, id) })

	id1, derr := s.Notify("app", 0, "", "one", "", nil, nil, -1)
	require.Nil(t, derr)
	id2, _ := s.Notify("app", 0, "", "two", "", nil, nil, -1)
	id3, _ := s.Notify("app", id1, "", "one again", "", nil, nil, -1)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id1, id3)
	assert.Equal(t, []uint32{id1, id2, id1}, got)
	assert.True(t, s.IsActive(id1))
}

func TestServer_NotifyStaleReplaceGetsNewID(t *testing.T) {
	s, _ := newTestServer()

	id1, _ := s.Notify("app", 0, "", "one", "", nil, nil, -1)
	s.MarkClosed(id1)

	id2, _ := s.Notify("app", id1, "", "one again", "", nil, nil, -1)
	assert.NotEqual(t, id1, id2)
	assert.False(t, s.IsActive(id1))
	assert.True(t, s.IsActive(id2))

	id3, _ := s.Notify("app", 4242, "", "unknown", "", nil, nil, -1)
	assert.NotEqual(t, uint32(4242), id3)
}

func TestIntrospectXML(t *testing.T) {
	assert.Contains(t, introspectXML, `<method name="Notify">`)
	assert.Contains(t, introspectXML, `<signal name="NotificationClosed">`)
	assert.NotContains(t, introspectXML, "ActionInvoked")
	assert.Contains(t, introspectXML, "org.freedesktop.DBus.Introspectable")
}

func TestServer_CloseNotification(t *testing.T) {
	s, e := newTestServer()

	var closed []uint32
	s.SetCloseHandler(func(id uint32) { closed = append(closed, id) })

	id, _ := s.Notify("app", 0, "", "one", "", nil, nil, -1)
	require.Nil(t, s.CloseNotification(id))
	require.Nil(t, s.CloseNotification(999))

	assert.Equal(t, []uint32{id}, closed)
	assert.Empty(t, e.signals, "signal waits for the toast to retire")
}

func TestServer_Closed(t *testing.T) {
	s, e := newTestServer()
	id, _ := s.Notify("app", 0, "", "one", "", nil, nil, -1)

	require.NoError(t, s.Closed(id, model.ReasonDismissed))
	require.NoError(t, s.Closed(id, model.ReasonExpired))

	require.Len(t, e.signals, 1)
	assert.Equal(t, DBusInterface+".NotificationClosed", e.signals[0].name)
	assert.Equal(t, []any{id, uint32(CloseReasonDismissed)}, e.signals[0].values)
	assert.False(t, s.IsActive(id))
}

func TestServer_EmitErrors(t *testing.T) {
	s := NewNotificationServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, s.EmitNotificationClosed(1, CloseReasonExpired), ErrNotConnected)

	s, e := newTestServer()
	e.err = errors.New("bus gone")
	id, _ := s.Notify("app", 0, "", "one", "", nil, nil, -1)
	assert.ErrorContains(t, s.Closed(id, model.ReasonExpired), "bus gone")
}

func TestServer_Info(t *testing.T) {
	s, _ := newTestServer()
	s.SetServerInfo(ServerInfo{Name: "retrotoast", Vendor: "v", Version: "1.0", SpecVersion: "1.2"})

	name, vendor, version, spec, derr := s.GetServerInformation()
	require.Nil(t, derr)
	assert.Equal(t, []string{"retrotoast", "v", "1.0", "1.2"}, []string{name, vendor, version, spec})

	caps, derr := s.GetCapabilities()
	require.Nil(t, derr)
	assert.Contains(t, caps, "body")
	assert.NotContains(t, caps, "actions")
}
