package heossim

import (
	"context"
	"testing"
	"time"

	"github.com/mikey-austin/heosq/internal/adapters/heoscli"
	"github.com/mikey-austin/heosq/pkg/heos"
)

func TestServerSpeaksTheWireProtocol(t *testing.T) {
	engine := seededEngine()
	server, err := NewServer(engine, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("start server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	channel := heoscli.New(heoscli.Options{Address: server.Addr()})

	resp, err := channel.Execute(ctx, heos.CmdGetQueue, heos.PIDArgs(5))
	if err != nil {
		t.Fatalf("get_queue: %v", err)
	}
	entries, err := heos.DecodeQueue(resp.Payload)
	if err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	args := heos.PIDArgs(5)
	args["qid"] = "2,3"
	if _, err := channel.Execute(ctx, heos.CmdRemoveFromQueue, args); err != nil {
		t.Fatalf("remove_from_queue: %v", err)
	}

	resp, err = channel.Execute(ctx, heos.CmdGetNowPlaying, heos.PIDArgs(5))
	if err != nil {
		t.Fatalf("get_now_playing: %v", err)
	}
	now, err := heos.DecodeNowPlaying(resp.Payload)
	if err != nil {
		t.Fatalf("decode now playing: %v", err)
	}
	if now.QID != heos.HeadQueueID {
		t.Fatalf("expected playing entry at the head, got %d", now.QID)
	}

	channel.Close()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
}
