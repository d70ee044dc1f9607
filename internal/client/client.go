// Package client drives queue-management operations from the CLI side.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mikey-austin/heosq/internal/core"
	"github.com/mikey-austin/heosq/internal/ports"
	"github.com/mikey-austin/heosq/pkg/hq"
)

// Broker publishes operations and collects presence.
type Broker interface {
	PublishOp(ctx context.Context, serviceID string, op hq.OpEnvelope) (hq.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]hq.Presence, error)
}

// Client wraps the broker with envelope bookkeeping.
type Client struct {
	Broker   Broker
	IDGen    ports.IDGen
	Clock    ports.Clock
	Identity string
	Service  string
}

// ClearQueue clears queues on the targeted devices.
func (c *Client) ClearQueue(ctx context.Context, targets []string) error {
	_, err := c.do(ctx, hq.OpClearQueue, hq.OpParams{Targets: targets}, false)
	return err
}

// ClearQueueExceptNowPlaying trims queues down to the playing entry.
func (c *Client) ClearQueueExceptNowPlaying(ctx context.Context, targets []string) error {
	_, err := c.do(ctx, hq.OpClearQueueOther, hq.OpParams{Targets: targets}, false)
	return err
}

// GetQueue fetches the queues of the targeted devices.
func (c *Client) GetQueue(ctx context.Context, targets []string) (hq.GetQueueReply, error) {
	body, err := c.do(ctx, hq.OpGetQueue, hq.OpParams{Targets: targets}, false)
	if err != nil {
		return hq.GetQueueReply{}, err
	}
	var reply hq.GetQueueReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return hq.GetQueueReply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}

// RemoveFromQueue removes one queue entry on the targeted devices. With
// report set, the per-device outcome is returned.
func (c *Client) RemoveFromQueue(ctx context.Context, targets []string, queueID int, report bool) (hq.RemoveReply, error) {
	body, err := c.do(ctx, hq.OpRemoveFromQueue, hq.OpParams{Targets: targets, QueueID: &queueID}, report)
	if err != nil {
		return hq.RemoveReply{}, err
	}
	var reply hq.RemoveReply
	if report {
		if err := json.Unmarshal(body, &reply); err != nil {
			return hq.RemoveReply{}, fmt.Errorf("decode reply: %w", err)
		}
	}
	return reply, nil
}

// GetPlayers lists the devices a selector resolves to.
func (c *Client) GetPlayers(ctx context.Context, targets []string) (hq.GetPlayersReply, error) {
	body, err := c.do(ctx, hq.OpGetPlayers, hq.OpParams{Targets: targets}, false)
	if err != nil {
		return hq.GetPlayersReply{}, err
	}
	var reply hq.GetPlayersReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return hq.GetPlayersReply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}

// Services lists the connected queue-management services.
func (c *Client) Services(ctx context.Context) ([]hq.Presence, error) {
	return c.Broker.ListPresence(ctx)
}

func (c *Client) do(ctx context.Context, op string, params hq.OpParams, wantReply bool) (json.RawMessage, error) {
	envelope, err := hq.NewOp(op, params)
	if err != nil {
		return nil, core.WrapError(core.ExitUsage, "invalid operation parameters", err)
	}
	envelope.ID = c.IDGen.NewID()
	envelope.TS = c.Clock.NowUnix()
	envelope.From = c.Identity
	envelope.WantReply = wantReply

	reply, err := c.Broker.PublishOp(ctx, c.Service, envelope)
	if err != nil {
		return nil, core.WrapError(core.ExitRuntime, op, err)
	}
	if !reply.OK {
		if reply.Err != nil {
			return nil, core.ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
		}
		return nil, core.WrapError(core.ExitRuntime, op, fmt.Errorf("service rejected the operation"))
	}
	return reply.Body, nil
}
