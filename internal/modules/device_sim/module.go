// Package devicesim hosts simulated HEOS devices inside the daemon.
package devicesim

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey-austin/heosq/internal/heossim"
	"github.com/mikey-austin/heosq/pkg/heos"
)

// DeviceConfig configures one simulated device.
type DeviceConfig struct {
	Listen string
	PID    int
	Name   string
	Tracks []string
}

// Config configures the simulator module.
type Config struct {
	Devices []DeviceConfig
}

// Module runs one TCP server per simulated device.
type Module struct {
	log     *zap.Logger
	servers []*heossim.Server
}

// NewModule creates the simulators and binds their listeners. Binding up
// front surfaces port clashes at startup instead of mid-run.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if len(cfg.Devices) == 0 {
		return nil, errors.New("device_sim requires at least one device")
	}

	module := &Module{log: log}
	for _, device := range cfg.Devices {
		if device.Listen == "" {
			module.closeAll()
			return nil, fmt.Errorf("simulated device %q is missing a listen address", device.Name)
		}

		engine := heossim.NewEngine(device.PID, device.Name)
		tracks := make([]heos.QueueEntry, 0, len(device.Tracks))
		for i, track := range device.Tracks {
			tracks = append(tracks, heos.QueueEntry{Song: track, MediaID: fmt.Sprintf("sim-%d-%d", device.PID, i+1)})
		}
		engine.Seed(tracks)

		server, err := heossim.NewServer(engine, device.Listen, log.With(zap.String("device", device.Name)))
		if err != nil {
			module.closeAll()
			return nil, fmt.Errorf("simulated device %q: %w", device.Name, err)
		}
		module.servers = append(module.servers, server)
		log.Info("simulated device listening", zap.String("name", device.Name), zap.Int("pid", device.PID), zap.String("address", server.Addr()))
	}
	return module, nil
}

// Run serves every simulated device until the context is cancelled.
func (m *Module) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, server := range m.servers {
		server := server
		group.Go(func() error {
			return server.Serve(ctx)
		})
	}
	return group.Wait()
}

func (m *Module) closeAll() {
	for _, server := range m.servers {
		server.Close()
	}
}
