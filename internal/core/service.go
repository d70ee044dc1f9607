package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/pkg/heos"
	"github.com/mikey-austin/heosq/pkg/hq"
)

// Service implements the queue-management operations over resolved targets.
type Service struct {
	Resolver Resolver
	Log      *zap.Logger
}

// failResult marks a command the device completed but flagged as failed.
// Control flow treats it like a transport error; logging treats it softer.
type failResult struct {
	command string
	message string
}

func (e *failResult) Error() string {
	if e.message == "" {
		return fmt.Sprintf("%s: device reported failure", e.command)
	}
	return fmt.Sprintf("%s: device reported failure: %s", e.command, e.message)
}

// ClearQueue clears the playback queue on every resolved device. Failures
// are logged per device; the operation itself never fails and returns no
// aggregate.
func (s *Service) ClearQueue(ctx context.Context, selector []string) error {
	targets, err := s.Resolver.Resolve(ctx, selector)
	if err != nil {
		return err
	}

	outcomes := dispatchAll(ctx, targets, func(ctx context.Context, target Target) (any, error) {
		_, err := execute(ctx, target, heos.CmdClearQueue, heos.PIDArgs(target.PID))
		return nil, err
	})
	s.logFailures(hq.OpClearQueue, outcomes)
	return nil
}

// ClearQueueExceptNowPlaying removes every queued entry except the one
// currently playing, per device. Outcomes are logged, not returned.
func (s *Service) ClearQueueExceptNowPlaying(ctx context.Context, selector []string) error {
	targets, err := s.Resolver.Resolve(ctx, selector)
	if err != nil {
		return err
	}

	outcomes := dispatchAll(ctx, targets, s.clearExceptNowPlaying)
	s.logFailures(hq.OpClearQueueOther, outcomes)
	return nil
}

func (s *Service) clearExceptNowPlaying(ctx context.Context, target Target) (any, error) {
	log := s.log().With(
		zap.String("op", hq.OpClearQueueOther),
		zap.String("device", target.DeviceID),
	)

	resp, err := execute(ctx, target, heos.CmdGetQueue, heos.PIDArgs(target.PID))
	if err != nil {
		return nil, err
	}
	queued, err := heos.DecodeQueue(resp.Payload)
	if err != nil {
		return nil, err
	}
	if len(queued) <= 1 {
		log.Debug("queue is already sized correctly")
		return nil, nil
	}

	resp, err = execute(ctx, target, heos.CmdGetNowPlaying, heos.PIDArgs(target.PID))
	if err != nil {
		return nil, err
	}
	now, err := heos.DecodeNowPlaying(resp.Payload)
	if err != nil {
		return nil, err
	}
	log.Debug("now playing before removal", zap.Int("qid", now.QID))

	// The device accepts a batched comma-joined qid list, so the whole
	// removal is one call.
	removals := make([]int, 0, len(queued))
	for _, entry := range queued {
		if entry.QID != now.QID {
			removals = append(removals, entry.QID)
		}
	}
	args := heos.PIDArgs(target.PID)
	args["qid"] = heos.JoinQIDs(removals)
	log.Debug("removing queue entries", zap.String("qids", args["qid"]))

	if _, err := execute(ctx, target, heos.CmdRemoveFromQueue, args); err != nil {
		// The device may have renumbered the queue already, so a failed
		// removal is not terminal for this device.
		log.Warn("batched removal failed", zap.Error(err))
	}

	resp, err = execute(ctx, target, heos.CmdGetNowPlaying, heos.PIDArgs(target.PID))
	if err != nil {
		log.Warn("unable to verify now playing after queue maintenance", zap.Error(err))
		return nil, nil
	}
	now, err = heos.DecodeNowPlaying(resp.Payload)
	if err != nil {
		log.Warn("unable to verify now playing after queue maintenance", zap.Error(err))
		return nil, nil
	}
	if now.QID != heos.HeadQueueID {
		// Diagnostic only: the queue snapshot raced the live queue.
		log.Error("now playing qid is not at the queue head after maintenance", zap.Int("qid", now.QID))
	}
	return nil, nil
}

// GetQueue fetches the playback queue from every resolved device and folds
// the per-device outcomes into one aggregate.
func (s *Service) GetQueue(ctx context.Context, selector []string) (hq.GetQueueReply, error) {
	targets, err := s.Resolver.Resolve(ctx, selector)
	if err != nil {
		return hq.GetQueueReply{}, err
	}

	outcomes := dispatchAll(ctx, targets, func(ctx context.Context, target Target) (any, error) {
		resp, err := execute(ctx, target, heos.CmdGetQueue, heos.PIDArgs(target.PID))
		if err != nil {
			return nil, err
		}
		return heos.DecodeQueue(resp.Payload)
	})
	s.logFailures(hq.OpGetQueue, outcomes)

	reply := hq.GetQueueReply{Queues: map[string][]heos.QueueEntry{}, Errors: []string{}}
	for _, deviceID := range sortedOutcomeKeys(outcomes) {
		outcome := outcomes[deviceID]
		if outcome.Err != nil {
			reply.Errors = append(reply.Errors, deviceID)
			continue
		}
		entries, _ := outcome.Payload.([]heos.QueueEntry)
		reply.Queues[deviceID] = entries
	}
	reply.Count = len(reply.Queues)
	return reply, nil
}

// RemoveFromQueue removes a single queue entry on every resolved device.
// A missing queue id fails the whole invocation before any dispatch.
func (s *Service) RemoveFromQueue(ctx context.Context, selector []string, queueID *int) (hq.RemoveReply, error) {
	if queueID == nil {
		return hq.RemoveReply{}, &CLIError{Code: ExitUsage, Msg: "queue_id is required"}
	}

	targets, err := s.Resolver.Resolve(ctx, selector)
	if err != nil {
		return hq.RemoveReply{}, err
	}

	qid := *queueID
	outcomes := dispatchAll(ctx, targets, func(ctx context.Context, target Target) (any, error) {
		args := heos.PIDArgs(target.PID)
		args["qid"] = heos.JoinQIDs([]int{qid})
		_, err := execute(ctx, target, heos.CmdRemoveFromQueue, args)
		return nil, err
	})
	s.logFailures(hq.OpRemoveFromQueue, outcomes)

	reply := hq.RemoveReply{Errors: []string{}}
	for _, deviceID := range sortedOutcomeKeys(outcomes) {
		if outcomes[deviceID].Err != nil {
			reply.Errors = append(reply.Errors, deviceID)
		}
	}
	return reply, nil
}

// GetPlayers returns the device set a selector resolves to. No remote
// commands are issued.
func (s *Service) GetPlayers(ctx context.Context, selector []string) (hq.GetPlayersReply, error) {
	targets, err := s.Resolver.Resolve(ctx, selector)
	if err != nil {
		return hq.GetPlayersReply{}, err
	}

	reply := hq.GetPlayersReply{Players: make([]hq.PlayerInfo, 0, len(targets))}
	for _, target := range targets {
		reply.Players = append(reply.Players, hq.PlayerInfo{
			DeviceID: target.DeviceID,
			Name:     target.Name,
			PID:      target.PID,
		})
	}
	sort.Slice(reply.Players, func(i, j int) bool {
		return reply.Players[i].DeviceID < reply.Players[j].DeviceID
	})
	return reply, nil
}

// execute runs one command on one device, folding a fail result into an
// error so sequences abort uniformly.
func execute(ctx context.Context, target Target, command string, args map[string]string) (heos.Response, error) {
	resp, err := target.Channel.Execute(ctx, command, args)
	if err != nil {
		return heos.Response{}, fmt.Errorf("%s: %w", command, err)
	}
	if !resp.Succeeded() {
		return resp, &failResult{command: command, message: resp.Heos.Message}
	}
	return resp, nil
}

func (s *Service) logFailures(op string, outcomes map[string]Outcome) {
	for _, deviceID := range sortedOutcomeKeys(outcomes) {
		outcome := outcomes[deviceID]
		if outcome.Err == nil {
			continue
		}
		var fail *failResult
		if errors.As(outcome.Err, &fail) {
			s.log().Warn("device reported command failure",
				zap.String("op", op),
				zap.String("device", deviceID),
				zap.Error(outcome.Err),
			)
			continue
		}
		s.log().Error("device command error",
			zap.String("op", op),
			zap.String("device", deviceID),
			zap.Error(outcome.Err),
		)
	}
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func sortedOutcomeKeys(outcomes map[string]Outcome) []string {
	keys := make([]string, 0, len(outcomes))
	for key := range outcomes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
