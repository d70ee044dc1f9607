package ports

import (
	"context"

	"github.com/mikey-austin/heosq/pkg/heos"
)

// CommandChannel executes one HEOS command against a single device and
// returns its reply. A non-nil error is a transport failure; a reply with a
// fail result is returned without error.
type CommandChannel interface {
	Execute(ctx context.Context, command string, args map[string]string) (heos.Response, error)
}

// Device is one registered HEOS device and its live command channel.
type Device struct {
	ID      string
	Name    string
	PID     int
	Aliases []string
	Channel CommandChannel
}

// Directory lists the devices the queue manager may operate on.
type Directory interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
