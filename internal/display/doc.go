// Package display manages the stack of toast windows: creating them through
// a platform adapter, positioning them relative to a screen corner, routing
// input and timer events to the owning toast, and tearing them down.
//
// A Manager is not safe for concurrent use. All calls must happen on the
// adapter's loop goroutine; producers elsewhere go through Adapter.Post.
package display
