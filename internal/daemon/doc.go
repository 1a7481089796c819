// Package daemon runs retrotoast as a long-lived process. It feeds requests
// from stdin and the freedesktop D-Bus interface into a display manager,
// reports toast lifecycle events, and hot-reloads config and themes.
//
// Everything that touches the display manager runs on the platform
// adapter's loop; other goroutines hand work over with Adapter.Post.
package daemon
