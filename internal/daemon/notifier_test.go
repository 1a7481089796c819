package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/retrotoast/internal/model"
)

func newTestNotifier() (*InternalNotifier, *[]model.Notification, *time.Time) {
	n := NewInternalNotifier(quietLogger())
	var got []model.Notification
	n.SetNotifyHandler(func(m model.Notification) { got = append(got, m) })

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	return n, &got, &now
}

func TestInternalNotifier_Notify(t *testing.T) {
	n, got, _ := newTestNotifier()

	n.NotifyConfigReloaded()
	require.Len(t, *got, 1)

	msg := (*got)[0]
	assert.Equal(t, internalAppName, msg.AppName)
	assert.Equal(t, "Configuration Reloaded", msg.Title)
	assert.True(t, msg.Silent)
	assert.True(t, msg.Timeout.IsDefault())
}

func TestInternalNotifier_RateLimitPerKey(t *testing.T) {
	n, got, now := newTestNotifier()

	n.NotifyConfigReloaded()
	n.NotifyConfigReloaded()
	n.NotifyConfigError(errors.New("bad position"))
	require.Len(t, *got, 2, "a different key is not limited")
	assert.Contains(t, (*got)[1].Body, "bad position")

	*now = now.Add(6 * time.Second)
	n.NotifyConfigReloaded()
	assert.Len(t, *got, 3)
}

func TestInternalNotifier_Disabled(t *testing.T) {
	n, got, _ := newTestNotifier()
	n.SetEnabled(false)
	n.NotifyThemeReloaded("classic")
	assert.Empty(t, *got)

	n.SetEnabled(true)
	n.NotifyThemeError(errors.New("nope"))
	require.Len(t, *got, 1)
	assert.Equal(t, "Theme Error", (*got)[0].Title)
}

func TestInternalNotifier_NoHandler(t *testing.T) {
	n := NewInternalNotifier(quietLogger())
	assert.NotPanics(t, func() { n.NotifyConfigReloaded() })
}
