// Package session launches and tears down the headless browsers that
// Lighthouse audits run against.
package session

import (
	"context"
	"errors"
	"fmt"
)

// Session is a running browser reachable through a DevTools port.
type Session interface {
	// Port is the remote-debugging port handed to the provider.
	Port() int
	// Alive returns nil while the browser still answers DevTools requests.
	Alive(ctx context.Context) error
	// Close shuts the browser down. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Launcher starts new sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// ErrExited is reported when the browser process is no longer running.
var ErrExited = errors.New("browser process exited")

// Error describes a failed session operation.
type Error struct {
	Op  string // "launch", "probe" or "close"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("browser session %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
