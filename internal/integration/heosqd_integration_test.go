//go:build integration

package integration

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/internal/adapters/clock"
	"github.com/mikey-austin/heosq/internal/adapters/idgen"
	"github.com/mikey-austin/heosq/internal/adapters/mqtt"
	"github.com/mikey-austin/heosq/internal/adapters/mqttserver"
	"github.com/mikey-austin/heosq/internal/adapters/registry"
	"github.com/mikey-austin/heosq/internal/client"
	"github.com/mikey-austin/heosq/internal/core"
	"github.com/mikey-austin/heosq/internal/heossim"
	embeddedmqtt "github.com/mikey-austin/heosq/internal/modules/embedded_mqtt"
	queuemgr "github.com/mikey-austin/heosq/internal/modules/queue_mgr"
	"github.com/mikey-austin/heosq/pkg/heos"
	"github.com/mikey-austin/heosq/pkg/hq"
)

const integrationService = "queue-mgr-int"

type harness struct {
	ctx    context.Context
	client *client.Client
	sim    *heossim.Engine
}

// setupHarness boots the full stack in-process: embedded broker, one
// simulated device, the queue manager module, and a CLI-side client.
func setupHarness(t *testing.T) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := zap.NewNop()

	brokerAddr := freeListenAddr(t)
	brokerModule, err := embeddedmqtt.NewModule(logger, embeddedmqtt.Config{Listen: brokerAddr, AllowAnonymous: true})
	if err != nil {
		t.Fatalf("embedded broker: %v", err)
	}
	runModule(t, ctx, "embedded_mqtt", brokerModule.Run)
	waitForReady(t, brokerAddr)
	brokerURL := embeddedmqtt.BrokerURL(brokerAddr, false)

	engine := heossim.NewEngine(5, "Living Room")
	engine.Seed([]heos.QueueEntry{
		{Song: "One", MediaID: "m1"},
		{Song: "Two", MediaID: "m2"},
		{Song: "Three", MediaID: "m3"},
	})
	simServer, err := heossim.NewServer(engine, "127.0.0.1:0", logger)
	if err != nil {
		t.Fatalf("sim server: %v", err)
	}
	runModule(t, ctx, "device_sim", simServer.Serve)

	reg, err := registry.New(registry.Options{Devices: []registry.DeviceEntry{
		{ID: "media_player.living_room", Name: "Living Room", Host: simServer.Addr(), PID: 5, Aliases: []string{"lr"}},
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	conn := waitForConn(t, brokerURL)
	service := &core.Service{Resolver: core.Resolver{Directory: reg}}
	module, err := queuemgr.NewModule(logger, conn, service, clock.Clock{}, queuemgr.Config{
		ServiceID: integrationService,
	})
	if err != nil {
		t.Fatalf("queue_mgr module: %v", err)
	}
	runModule(t, ctx, "queue_mgr", module.Run)

	mqttClient := waitForClient(t, brokerURL)
	cli := &client.Client{
		Broker:   mqttClient,
		IDGen:    idgen.Generator{},
		Clock:    clock.Clock{},
		Identity: "integration",
		Service:  integrationService,
	}
	waitForPresence(t, cli)

	return &harness{ctx: ctx, client: cli, sim: engine}
}

func TestQueueLifecycle(t *testing.T) {
	h := setupHarness(t)
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	queues, err := h.client.GetQueue(ctx, []string{"all"})
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if queues.Count != 1 || len(queues.Queues["media_player.living_room"]) != 3 {
		t.Fatalf("unexpected queues: %+v", queues)
	}

	report, err := h.client.RemoveFromQueue(ctx, []string{"lr"}, 3, true)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected removal errors: %v", report.Errors)
	}
	if h.sim.QueueLength() != 2 {
		t.Fatalf("expected 2 entries after removal, got %d", h.sim.QueueLength())
	}

	if err := h.client.ClearQueue(ctx, []string{"all"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if h.sim.QueueLength() != 0 {
		t.Fatalf("expected empty queue, got %d entries", h.sim.QueueLength())
	}
}

func TestKeepCurrentLeavesOnlyThePlayingEntry(t *testing.T) {
	h := setupHarness(t)
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	if err := h.client.ClearQueueExceptNowPlaying(ctx, []string{"all"}); err != nil {
		t.Fatalf("keep-current: %v", err)
	}
	if h.sim.QueueLength() != 1 {
		t.Fatalf("expected a single remaining entry, got %d", h.sim.QueueLength())
	}

	queues, err := h.client.GetQueue(ctx, []string{"all"})
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	entries := queues.Queues["media_player.living_room"]
	if len(entries) != 1 || entries[0].QID != heos.HeadQueueID || entries[0].Song != "One" {
		t.Fatalf("unexpected survivor: %+v", entries)
	}
}

func TestRemoveWithoutQueueIDFailsWithUsageError(t *testing.T) {
	h := setupHarness(t)
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	op, err := hq.NewOp(hq.OpRemoveFromQueue, hq.OpParams{Targets: []string{"all"}})
	if err != nil {
		t.Fatalf("build op: %v", err)
	}
	op.ID = idgen.Generator{}.NewID()
	op.TS = time.Now().Unix()
	op.From = "integration"

	reply, err := h.client.Broker.PublishOp(ctx, integrationService, op)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if reply.OK || reply.Err == nil || reply.Err.Code != core.CodeInvalid {
		t.Fatalf("expected INVALID reply, got %+v", reply)
	}
}

func TestGetPlayers(t *testing.T) {
	h := setupHarness(t)
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	players, err := h.client.GetPlayers(ctx, []string{"all"})
	if err != nil {
		t.Fatalf("get players: %v", err)
	}
	if len(players.Players) != 1 || players.Players[0].PID != 5 {
		t.Fatalf("unexpected players: %+v", players)
	}
}

func runModule(t *testing.T, ctx context.Context, name string, run func(context.Context) error) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()
	t.Cleanup(func() {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("%s module failed: %v", name, err)
			}
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func waitForConn(t *testing.T, brokerURL string) *mqttserver.Conn {
	t.Helper()
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := mqttserver.Connect(mqttserver.Options{
			BrokerURL: brokerURL,
			ClientID:  "heosqd-int-" + idgen.Generator{}.NewID(),
			Timeout:   2 * time.Second,
		})
		if err == nil {
			t.Cleanup(conn.Disconnect)
			return conn
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("connect daemon side: %v", lastErr)
	return nil
}

func waitForClient(t *testing.T, brokerURL string) *mqtt.Client {
	t.Helper()
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: brokerURL,
			ClientID:  "heosq-int-" + idgen.Generator{}.NewID(),
			TopicBase: hq.BaseTopic,
			Timeout:   5 * time.Second,
		})
		if err == nil {
			t.Cleanup(c.Disconnect)
			return c
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("connect cli side: %v", lastErr)
	return nil
}

func waitForPresence(t *testing.T, cli *client.Client) {
	t.Helper()
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		services, err := cli.Services(context.Background())
		if err == nil {
			for _, p := range services {
				if p.ServiceID == integrationService {
					return
				}
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for presence: %s", integrationService)
}

func freeListenAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EPERM) || strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("network listen not permitted in this environment")
		}
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func waitForReady(t *testing.T, listen string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", listen, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("broker not ready: %v", lastErr)
}
