package headless

import (
	"context"
	"errors"
)

// Noop implements fetch.Renderer but always errors, for builds where a
// browser is not available.
type Noop struct{}

// NewNoop creates a Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns an error since no browser is configured.
func (Noop) Render(_ context.Context, _ string) (string, error) {
	return "", errors.New("headless renderer not configured")
}

// Close is a no-op.
func (Noop) Close() {}
