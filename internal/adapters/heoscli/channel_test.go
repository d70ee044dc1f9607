package heoscli

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mikey-austin/heosq/pkg/heos"
)

// scriptedServer accepts one connection and answers each received line
// with the scripted replies for that command.
func scriptedServer(t *testing.T, replies map[string][]string) (addr string, received chan string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	received = make(chan string, 16)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			received <- line

			command := strings.TrimPrefix(line, "heos://")
			if i := strings.IndexByte(command, '?'); i >= 0 {
				command = command[:i]
			}
			for _, reply := range replies[command] {
				if _, err := conn.Write([]byte(reply + "\r\n")); err != nil {
					return
				}
			}
		}
	}()

	return listener.Addr().String(), received
}

func TestExecuteRoundTrip(t *testing.T) {
	addr, received := scriptedServer(t, map[string][]string{
		"player/get_queue": {
			`{"heos":{"command":"player/get_queue","result":"success","message":"pid=5"},"payload":[{"qid":1,"song":"One"}]}`,
		},
	})

	channel := New(Options{Address: addr})
	defer channel.Close()

	resp, err := channel.Execute(context.Background(), heos.CmdGetQueue, heos.PIDArgs(5))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !resp.Succeeded() {
		t.Fatalf("expected success, got %+v", resp.Heos)
	}
	entries, err := heos.DecodeQueue(resp.Payload)
	if err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(entries) != 1 || entries[0].Song != "One" {
		t.Fatalf("unexpected entries: %v", entries)
	}

	select {
	case line := <-received:
		if line != "heos://player/get_queue?pid=5" {
			t.Fatalf("unexpected command line: %s", line)
		}
	case <-time.After(time.Second):
		t.Fatalf("server never saw the command")
	}
}

func TestExecuteSkipsEventsAndInterimReplies(t *testing.T) {
	addr, _ := scriptedServer(t, map[string][]string{
		"player/clear_queue": {
			`{"heos":{"command":"event/player_queue_changed","result":"","message":"pid=5"}}`,
			`{"heos":{"command":"player/clear_queue","result":"success","message":"command under process"}}`,
			`{"heos":{"command":"player/clear_queue","result":"success","message":"pid=5"}}`,
		},
	})

	channel := New(Options{Address: addr})
	defer channel.Close()

	resp, err := channel.Execute(context.Background(), heos.CmdClearQueue, heos.PIDArgs(5))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !resp.Succeeded() || resp.InProgress() {
		t.Fatalf("expected terminal success, got %+v", resp.Heos)
	}
}

func TestExecuteFailResultIsNotATransportError(t *testing.T) {
	addr, _ := scriptedServer(t, map[string][]string{
		"player/remove_from_queue": {
			`{"heos":{"command":"player/remove_from_queue","result":"fail","message":"eid=9&text=Out of range"}}`,
		},
	})

	channel := New(Options{Address: addr})
	defer channel.Close()

	args := heos.PIDArgs(5)
	args["qid"] = "99"
	resp, err := channel.Execute(context.Background(), heos.CmdRemoveFromQueue, args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Succeeded() {
		t.Fatalf("expected device failure")
	}
	if values := resp.MessageValues(); values["eid"] != "9" {
		t.Fatalf("unexpected message values: %v", values)
	}
}

func TestExecuteDialFailure(t *testing.T) {
	channel := New(Options{Address: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := channel.Execute(ctx, heos.CmdGetPlayers, nil); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestEnsurePort(t *testing.T) {
	if got := ensurePort("10.0.0.5"); got != "10.0.0.5:1255" {
		t.Fatalf("unexpected address: %s", got)
	}
	if got := ensurePort("10.0.0.5:9000"); got != "10.0.0.5:9000" {
		t.Fatalf("unexpected address: %s", got)
	}
}
