// Package theme handles palette loading and hot-reload for retrotoast.
// It supports loading themes from ~/.config/retrotoast/themes/ and provides
// embedded themes for use when no custom theme is configured.
package theme
