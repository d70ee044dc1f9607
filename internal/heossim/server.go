package heossim

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/pkg/heos"
)

// Server exposes one engine over the CLI wire protocol.
type Server struct {
	engine   *Engine
	listener net.Listener
	log      *zap.Logger
}

// NewServer starts listening on the given address. Use port 0 to let the
// OS pick one.
func NewServer(engine *Engine, address string, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Server{engine: engine, listener: listener, log: log}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Close stops the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp heos.Response
		command, args, err := heos.ParseCommand(line)
		if err != nil {
			s.log.Debug("malformed line", zap.String("line", line))
			resp = heos.ErrorResponse("unknown", "eid=1&text=Malformed command")
		} else {
			resp = s.engine.HandleCommand(command, args)
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			s.log.Error("marshal response", zap.Error(err))
			continue
		}
		if _, err := conn.Write(append(payload, '\r', '\n')); err != nil {
			return
		}
	}
}
