// Package registry holds the configured device inventory.
package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/internal/adapters/heoscli"
	"github.com/mikey-austin/heosq/internal/ports"
)

// DeviceEntry is one configured device.
type DeviceEntry struct {
	ID      string
	Name    string
	Host    string
	PID     int
	Aliases []string
}

// Options configures the registry.
type Options struct {
	Devices        []DeviceEntry
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	Log            *zap.Logger
}

// Registry is a static Directory built from configuration. Each device
// gets a lazily dialed command channel which sticks around for the
// lifetime of the registry.
type Registry struct {
	devices  []ports.Device
	channels []*heoscli.Channel
}

// New validates the configured devices and builds their channels.
func New(opts Options) (*Registry, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	registry := &Registry{}
	seen := map[string]bool{}
	for _, entry := range opts.Devices {
		if entry.ID == "" {
			return nil, fmt.Errorf("device entry is missing an id")
		}
		if entry.Host == "" {
			return nil, fmt.Errorf("device %s is missing a host", entry.ID)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("duplicate device id %s", entry.ID)
		}
		seen[entry.ID] = true

		channel := heoscli.New(heoscli.Options{
			Address:        entry.Host,
			DialTimeout:    opts.DialTimeout,
			CommandTimeout: opts.CommandTimeout,
			Log:            opts.Log.With(zap.String("device", entry.ID)),
		})
		registry.channels = append(registry.channels, channel)
		registry.devices = append(registry.devices, ports.Device{
			ID:      entry.ID,
			Name:    entry.Name,
			PID:     entry.PID,
			Aliases: entry.Aliases,
			Channel: channel,
		})
	}
	return registry, nil
}

// ListDevices returns the configured devices.
func (r *Registry) ListDevices(_ context.Context) ([]ports.Device, error) {
	out := make([]ports.Device, len(r.devices))
	copy(out, r.devices)
	return out, nil
}

// Close tears down every device channel.
func (r *Registry) Close() error {
	var firstErr error
	for _, channel := range r.channels {
		if err := channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
