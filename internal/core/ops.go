package core

import (
	"context"

	"github.com/mikey-austin/heosq/pkg/hq"
)

// ResponseMode declares whether an operation produces a reply body.
type ResponseMode int

const (
	// ResponseNone never returns a body.
	ResponseNone ResponseMode = iota
	// ResponseRequired always returns a body.
	ResponseRequired
	// ResponseOptional returns a body only when the caller asked for one.
	ResponseOptional
)

// Request carries the decoded parameters of one inbound operation.
type Request struct {
	Targets []string
	QueueID *int
}

// Operation describes one entry of the closed operation table. Handle
// returns the reply body, or nil for operations without one.
type Operation struct {
	Name     string
	Response ResponseMode
	Handle   func(ctx context.Context, req Request) (any, error)
}

// Operations builds the operation table. It is constructed once at startup
// and handed to the hosting module; dispatch goes strictly through it.
func (s *Service) Operations() map[string]Operation {
	return map[string]Operation{
		hq.OpClearQueue: {
			Name:     hq.OpClearQueue,
			Response: ResponseNone,
			Handle: func(ctx context.Context, req Request) (any, error) {
				return nil, s.ClearQueue(ctx, req.Targets)
			},
		},
		hq.OpClearQueueOther: {
			Name:     hq.OpClearQueueOther,
			Response: ResponseNone,
			Handle: func(ctx context.Context, req Request) (any, error) {
				return nil, s.ClearQueueExceptNowPlaying(ctx, req.Targets)
			},
		},
		hq.OpGetQueue: {
			Name:     hq.OpGetQueue,
			Response: ResponseRequired,
			Handle: func(ctx context.Context, req Request) (any, error) {
				return s.GetQueue(ctx, req.Targets)
			},
		},
		hq.OpRemoveFromQueue: {
			Name:     hq.OpRemoveFromQueue,
			Response: ResponseOptional,
			Handle: func(ctx context.Context, req Request) (any, error) {
				return s.RemoveFromQueue(ctx, req.Targets, req.QueueID)
			},
		},
		hq.OpGetPlayers: {
			Name:     hq.OpGetPlayers,
			Response: ResponseRequired,
			Handle: func(ctx context.Context, req Request) (any, error) {
				return s.GetPlayers(ctx, req.Targets)
			},
		},
	}
}
