package hq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "hq/v1"

// Operation names accepted by the queue manager service.
const (
	OpClearQueue      = "clear_queue"
	OpClearQueueOther = "clear_queue_except_now_playing"
	OpGetQueue        = "get_queue"
	OpRemoveFromQueue = "remove_from_queue"
	OpGetPlayers      = "get_players"
)

// OpEnvelope is the inbound operation envelope published to a service.
type OpEnvelope struct {
	ID        string          `json:"id"`
	Op        string          `json:"op"`
	TS        int64           `json:"ts"`
	From      string          `json:"from"`
	ReplyTo   string          `json:"replyTo,omitempty"`
	WantReply bool            `json:"wantReply,omitempty"`
	Params    json.RawMessage `json:"params"`
}

// ReplyEnvelope is the response envelope for operations.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Presence is the retained record a service publishes on startup.
type Presence struct {
	ServiceID string   `json:"serviceId"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Ops       []string `json:"ops,omitempty"`
	TS        int64    `json:"ts"`
}

// NewOp builds an operation envelope with JSON params.
func NewOp(op string, params any) (OpEnvelope, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return OpEnvelope{}, fmt.Errorf("marshal params: %w", err)
	}
	return OpEnvelope{Op: op, Params: payload}, nil
}

// ValidateOpEnvelope validates the required envelope fields.
func ValidateOpEnvelope(op OpEnvelope) error {
	if strings.TrimSpace(op.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(op.Op) == "" {
		return errors.New("op is required")
	}
	if op.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(op.From) == "" {
		return errors.New("from is required")
	}
	if len(op.Params) == 0 {
		return errors.New("params is required")
	}
	return nil
}

// TopicCommands builds the operation topic for a service.
func TopicCommands(topicBase, serviceID string) string {
	return fmt.Sprintf("%s/svc/%s/cmd", topicBase, serviceID)
}

// TopicPresence builds the presence topic for a service.
func TopicPresence(topicBase, serviceID string) string {
	return fmt.Sprintf("%s/svc/%s/presence", topicBase, serviceID)
}

// TopicReply builds the reply topic for a caller instance.
func TopicReply(topicBase, callerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, callerID)
}
