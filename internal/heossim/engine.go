// Package heossim simulates a HEOS device for development and tests.
package heossim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mikey-austin/heosq/pkg/heos"
)

// Engine holds the simulated device state. Queue ids are always the
// contiguous range 1..n, matching how real devices renumber after every
// mutation.
type Engine struct {
	pid  int
	name string

	mu      sync.Mutex
	queue   []heos.QueueEntry
	playing int
}

// NewEngine creates a device engine with an empty queue.
func NewEngine(pid int, name string) *Engine {
	return &Engine{pid: pid, name: name, playing: -1}
}

// Seed replaces the queue with the given tracks and starts playing the
// first one.
func (e *Engine) Seed(tracks []heos.QueueEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append([]heos.QueueEntry{}, tracks...)
	e.renumber()
	e.playing = -1
	if len(e.queue) > 0 {
		e.playing = 0
	}
}

// QueueLength returns the current queue size.
func (e *Engine) QueueLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// HandleCommand executes one parsed command and returns the reply.
func (e *Engine) HandleCommand(command string, args map[string]string) heos.Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch command {
	case heos.CmdGetPlayers:
		return e.handleGetPlayers()
	case heos.CmdGetQueue, heos.CmdGetNowPlaying, heos.CmdClearQueue, heos.CmdRemoveFromQueue:
		if err := e.checkPID(args); err != nil {
			return heos.ErrorResponse(command, fmt.Sprintf("eid=2&text=%s", err))
		}
	default:
		return heos.ErrorResponse(command, "eid=1&text=Unknown command")
	}

	switch command {
	case heos.CmdGetQueue:
		return e.handleGetQueue()
	case heos.CmdGetNowPlaying:
		return e.handleGetNowPlaying()
	case heos.CmdClearQueue:
		return e.handleClearQueue()
	default:
		return e.handleRemoveFromQueue(args)
	}
}

func (e *Engine) checkPID(args map[string]string) error {
	pid, err := strconv.Atoi(args["pid"])
	if err != nil || pid != e.pid {
		return fmt.Errorf("Invalid player id")
	}
	return nil
}

func (e *Engine) handleGetPlayers() heos.Response {
	players := []heos.Player{{Name: e.name, PID: e.pid, Model: "HEOS Sim", Network: "wired"}}
	return mustSuccess(heos.CmdGetPlayers, "", players)
}

func (e *Engine) handleGetQueue() heos.Response {
	message := fmt.Sprintf("pid=%d&returned=%d&count=%d", e.pid, len(e.queue), len(e.queue))
	return mustSuccess(heos.CmdGetQueue, message, e.queue)
}

func (e *Engine) handleGetNowPlaying() heos.Response {
	now := heos.NowPlaying{}
	if e.playing >= 0 && e.playing < len(e.queue) {
		entry := e.queue[e.playing]
		now = heos.NowPlaying{
			Type:    heos.MediaTypeSong,
			QID:     entry.QID,
			Song:    entry.Song,
			Album:   entry.Album,
			Artist:  entry.Artist,
			MediaID: entry.MediaID,
		}
	}
	return mustSuccess(heos.CmdGetNowPlaying, fmt.Sprintf("pid=%d", e.pid), now)
}

func (e *Engine) handleClearQueue() heos.Response {
	e.queue = nil
	e.playing = -1
	return mustSuccess(heos.CmdClearQueue, fmt.Sprintf("pid=%d", e.pid), nil)
}

func (e *Engine) handleRemoveFromQueue(args map[string]string) heos.Response {
	qids, err := parseQIDList(args["qid"])
	if err != nil {
		return heos.ErrorResponse(heos.CmdRemoveFromQueue, "eid=9&text=Out of range")
	}
	for _, qid := range qids {
		if qid < 1 || qid > len(e.queue) {
			return heos.ErrorResponse(heos.CmdRemoveFromQueue, "eid=9&text=Out of range")
		}
	}

	remove := map[int]bool{}
	for _, qid := range qids {
		remove[qid] = true
	}

	// Track where the playing entry lands after compaction. If it was
	// removed, playback falls back to the new head.
	newPlaying := -1
	kept := e.queue[:0]
	for i, entry := range e.queue {
		if remove[entry.QID] {
			continue
		}
		if i == e.playing {
			newPlaying = len(kept)
		}
		kept = append(kept, entry)
	}
	e.queue = kept
	e.renumber()

	e.playing = newPlaying
	if e.playing < 0 && len(e.queue) > 0 {
		e.playing = 0
	}

	message := fmt.Sprintf("pid=%d&qid=%s", e.pid, args["qid"])
	return mustSuccess(heos.CmdRemoveFromQueue, message, nil)
}

// renumber compacts qids to 1..n.
func (e *Engine) renumber() {
	for i := range e.queue {
		e.queue[i].QID = i + 1
	}
}

func parseQIDList(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty qid list")
	}
	parts := strings.Split(raw, ",")
	qids := make([]int, 0, len(parts))
	for _, part := range parts {
		qid, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		qids = append(qids, qid)
	}
	sort.Ints(qids)
	return qids, nil
}

func mustSuccess(command string, message string, payload any) heos.Response {
	resp, err := heos.SuccessResponse(command, message, payload)
	if err != nil {
		return heos.ErrorResponse(command, "eid=12&text=Internal error")
	}
	return resp
}
