package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/internal/ports"
)

// SelectorAll expands to every registered device.
const SelectorAll = "all"

// Target is one resolved device eligible for a command. Targets are
// resolved fresh per invocation and never persisted.
type Target struct {
	DeviceID string
	Name     string
	PID      int
	Channel  ports.CommandChannel
}

// Resolver expands device selectors against the directory.
type Resolver struct {
	Directory ports.Directory
	Log       *zap.Logger
}

// Resolve expands a selector to the live target set. Selector entries match
// a device id, name, or alias case-insensitively; entries matching nothing
// are logged and skipped. The result is deduplicated by device id, and an
// empty result is valid.
func (r Resolver) Resolve(ctx context.Context, selector []string) ([]Target, error) {
	devices, err := r.Directory.ListDevices(ctx)
	if err != nil {
		return nil, WrapError(ExitRuntime, "list devices", err)
	}

	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	seen := map[string]struct{}{}
	targets := make([]Target, 0, len(devices))
	add := func(device ports.Device) {
		if _, ok := seen[device.ID]; ok {
			return
		}
		seen[device.ID] = struct{}{}
		targets = append(targets, Target{
			DeviceID: device.ID,
			Name:     device.Name,
			PID:      device.PID,
			Channel:  device.Channel,
		})
	}

	for _, entry := range selector {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.EqualFold(entry, SelectorAll) {
			for _, device := range devices {
				add(device)
			}
			continue
		}
		device, ok := matchDevice(entry, devices)
		if !ok {
			log.Warn("skipping unknown device selector", zap.String("selector", entry))
			continue
		}
		add(device)
	}

	return targets, nil
}

func matchDevice(entry string, devices []ports.Device) (ports.Device, bool) {
	for _, device := range devices {
		if strings.EqualFold(device.ID, entry) || strings.EqualFold(device.Name, entry) {
			return device, true
		}
		for _, alias := range device.Aliases {
			if strings.EqualFold(alias, entry) {
				return device, true
			}
		}
	}
	return ports.Device{}, false
}
