package core

import (
	"context"
	"testing"

	"github.com/mikey-austin/heosq/internal/ports"
)

type stubDirectory struct {
	devices []ports.Device
	err     error
}

func (d stubDirectory) ListDevices(ctx context.Context) ([]ports.Device, error) {
	return d.devices, d.err
}

func testDevices() []ports.Device {
	return []ports.Device{
		{ID: "media_player.living_room", Name: "Living Room", PID: 5, Aliases: []string{"lr"}},
		{ID: "media_player.kitchen", Name: "Kitchen", PID: 7},
	}
}

func TestResolveDeduplicates(t *testing.T) {
	resolver := Resolver{Directory: stubDirectory{devices: testDevices()}}
	targets, err := resolver.Resolve(context.Background(), []string{"media_player.living_room", "Living Room", "lr"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if targets[0].PID != 5 {
		t.Fatalf("unexpected pid %d", targets[0].PID)
	}
}

func TestResolveAll(t *testing.T) {
	resolver := Resolver{Directory: stubDirectory{devices: testDevices()}}
	targets, err := resolver.Resolve(context.Background(), []string{"all"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
}

func TestResolveSkipsUnknownSelectors(t *testing.T) {
	resolver := Resolver{Directory: stubDirectory{devices: testDevices()}}
	targets, err := resolver.Resolve(context.Background(), []string{"media_player.bathroom", "kitchen"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected unknown selector skipped, got %d targets", len(targets))
	}
	if targets[0].DeviceID != "media_player.kitchen" {
		t.Fatalf("unexpected target %s", targets[0].DeviceID)
	}
}

func TestResolveEmptyResultIsValid(t *testing.T) {
	resolver := Resolver{Directory: stubDirectory{devices: testDevices()}}
	targets, err := resolver.Resolve(context.Background(), []string{"media_player.bathroom"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected empty target set")
	}
}
