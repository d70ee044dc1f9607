// Package heoscli speaks the HEOS CLI protocol over TCP.
package heoscli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/heosq/pkg/heos"
)

// Options configures a device channel.
type Options struct {
	Address        string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	Log            *zap.Logger
}

// Channel is a TCP adapter implementing the CommandChannel port. The
// connection is dialed on first use and reused until an error tears it
// down. Commands are serialized; the CLI protocol carries no correlation
// id, so one command is in flight at a time.
type Channel struct {
	opts Options

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// New creates a channel for one device endpoint. No connection is made
// until the first Execute.
func New(opts Options) *Channel {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = 10 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	opts.Address = ensurePort(opts.Address)
	return &Channel{opts: opts}
}

// Execute sends one command and waits for its terminal reply. Event lines
// and interim "command under process" replies are skipped.
func (c *Channel) Execute(ctx context.Context, command string, args map[string]string) (heos.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return heos.Response{}, err
	}

	deadline := time.Now().Add(c.opts.CommandTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.teardown()
		return heos.Response{}, err
	}

	line := heos.BuildCommand(command, args)
	c.opts.Log.Debug("sending command", zap.String("line", line), zap.String("address", c.opts.Address))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", line); err != nil {
		c.teardown()
		return heos.Response{}, fmt.Errorf("write %s: %w", command, err)
	}

	for {
		raw, err := c.reader.ReadBytes('\n')
		if err != nil {
			c.teardown()
			return heos.Response{}, fmt.Errorf("read reply for %s: %w", command, err)
		}

		var resp heos.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			c.opts.Log.Warn("discarding undecodable line", zap.Error(err))
			continue
		}
		if resp.IsEvent() {
			c.opts.Log.Debug("skipping unsolicited event", zap.String("event", resp.Heos.Command))
			continue
		}
		if resp.InProgress() {
			continue
		}
		if resp.Heos.Command != command {
			c.opts.Log.Debug("skipping reply for another command", zap.String("command", resp.Heos.Command))
			continue
		}
		return resp, nil
	}
}

// Close tears down the connection if one is open.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func (c *Channel) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.Address, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.opts.Log.Debug("connected", zap.String("address", c.opts.Address))
	return nil
}

func (c *Channel) teardown() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.reader = nil
}

func ensurePort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(heos.DefaultPort))
}
