package hq

import "github.com/mikey-austin/heosq/pkg/heos"

// OpParams carries the parameters common to all queue operations. Targets
// is the device selector; QueueID is only meaningful for remove_from_queue.
type OpParams struct {
	Targets []string `json:"targets,omitempty"`
	QueueID *int     `json:"queueId,omitempty"`
}

// GetQueueReply is the reply body for get_queue.
type GetQueueReply struct {
	Count  int                          `json:"count"`
	Queues map[string][]heos.QueueEntry `json:"queues"`
	Errors []string                     `json:"errors"`
}

// RemoveReply is the reply body for remove_from_queue when the caller
// requested a response.
type RemoveReply struct {
	Errors []string `json:"errors"`
}

// PlayerInfo is one resolved device in a get_players reply.
type PlayerInfo struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	PID      int    `json:"pid"`
}

// GetPlayersReply is the reply body for get_players.
type GetPlayersReply struct {
	Players []PlayerInfo `json:"players"`
}
