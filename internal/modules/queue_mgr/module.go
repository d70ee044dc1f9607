// Package queuemgr exposes the queue-management operations over the broker.
package queuemgr

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/internal/adapters/mqttserver"
	"github.com/mikey-austin/heosq/internal/core"
	"github.com/mikey-austin/heosq/internal/ports"
	"github.com/mikey-austin/heosq/pkg/hq"
)

// Config configures the queue manager module.
type Config struct {
	ServiceID string
	Name      string
	TopicBase string
}

// Module subscribes to the service command topic and dispatches inbound
// operations through the closed operation table.
type Module struct {
	log      *zap.Logger
	conn     *mqttserver.Conn
	ops      map[string]core.Operation
	clock    ports.Clock
	config   Config
	cmdTopic string
}

// NewModule initializes the queue manager module.
func NewModule(log *zap.Logger, conn *mqttserver.Conn, service *core.Service, clock ports.Clock, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.ServiceID) == "" {
		return nil, errors.New("queue_mgr service_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = hq.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "HEOS Queue Manager"
	}

	return &Module{
		log:      log,
		conn:     conn,
		ops:      service.Operations(),
		clock:    clock,
		config:   cfg,
		cmdTopic: hq.TopicCommands(cfg.TopicBase, cfg.ServiceID),
	}, nil
}

// Run subscribes and serves until the context is cancelled.
func (m *Module) Run(ctx context.Context) error {
	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(ctx, msg)
	}

	if err := m.conn.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.conn.Unsubscribe(m.cmdTopic)

	if err := m.publishPresence(); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func (m *Module) publishPresence() error {
	ops := make([]string, 0, len(m.ops))
	for name := range m.ops {
		ops = append(ops, name)
	}

	presence := hq.Presence{
		ServiceID: m.config.ServiceID,
		Kind:      "queue_mgr",
		Name:      m.config.Name,
		Ops:       ops,
		TS:        m.clock.NowUnix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.conn.Publish(hq.TopicPresence(m.config.TopicBase, m.config.ServiceID), 1, true, payload)
}

func (m *Module) handleMessage(ctx context.Context, msg paho.Message) {
	var op hq.OpEnvelope
	if err := json.Unmarshal(msg.Payload(), &op); err != nil {
		m.log.Warn("discarding undecodable operation", zap.Error(err))
		return
	}

	reply := m.dispatch(ctx, op)
	if op.ReplyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.conn.Publish(op.ReplyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}

// dispatch runs one operation and builds its reply envelope. Every
// operation gets at least an ack; bodies follow the table's response mode.
func (m *Module) dispatch(ctx context.Context, op hq.OpEnvelope) hq.ReplyEnvelope {
	if err := hq.ValidateOpEnvelope(op); err != nil {
		return m.errorReply(op, core.CodeInvalid, err.Error())
	}

	operation, ok := m.ops[op.Op]
	if !ok {
		return m.errorReply(op, core.CodeInvalid, "unsupported operation")
	}

	var params hq.OpParams
	if err := json.Unmarshal(op.Params, &params); err != nil {
		return m.errorReply(op, core.CodeInvalid, "invalid params")
	}

	m.log.Info("dispatching operation",
		zap.String("op", op.Op),
		zap.String("id", op.ID),
		zap.String("from", op.From),
		zap.Strings("targets", params.Targets),
	)

	body, err := operation.Handle(ctx, core.Request{Targets: params.Targets, QueueID: params.QueueID})
	if err != nil {
		return m.errorReply(op, core.ReplyCodeForError(err), err.Error())
	}

	reply := hq.ReplyEnvelope{
		ID:   op.ID,
		Type: "ack",
		OK:   true,
		TS:   m.clock.NowUnix(),
	}
	if !wantsBody(operation.Response, op.WantReply) {
		return reply
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return m.errorReply(op, core.CodeRuntime, "marshal body")
	}
	reply.Body = payload
	return reply
}

func wantsBody(mode core.ResponseMode, wantReply bool) bool {
	switch mode {
	case core.ResponseRequired:
		return true
	case core.ResponseOptional:
		return wantReply
	default:
		return false
	}
}

func (m *Module) errorReply(op hq.OpEnvelope, code string, message string) hq.ReplyEnvelope {
	m.log.Warn("operation failed",
		zap.String("op", op.Op),
		zap.String("id", op.ID),
		zap.String("code", code),
		zap.String("reason", message),
	)
	return hq.ReplyEnvelope{
		ID:   op.ID,
		Type: "error",
		OK:   false,
		TS:   m.clock.NowUnix(),
		Err: &hq.ReplyError{
			Code:    code,
			Message: message,
		},
	}
}
