// Package client calls a onerpc server. Every call dials a new connection,
// writes one request, half-closes the connection and reads the response
// until the server closes it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mnehpets/onerpc/httpwire"
	"github.com/mnehpets/onerpc/jsonrpc"
)

// ErrIDMismatch is returned when the response id differs from the request id.
var ErrIDMismatch = errors.New("client: response id does not match request")

// StatusError is returned when the server answers with a status other than
// 200. Such responses carry no envelope.
type StatusError struct {
	Status httpwire.Status
}

func (e *StatusError) Error() string {
	return "client: server returned " + e.Status.String()
}

// RPCError is a handler-level failure reported in the envelope's error field.
type RPCError struct {
	Method  string
	Message string
}

func (e *RPCError) Error() string {
	return "client: " + e.Method + ": " + e.Message
}

// Option configures a Client.
type Option func(*Client)

// WithCodec selects the envelope codec. Defaults to jsonrpc.JSON.
func WithCodec(c jsonrpc.Codec) Option {
	return func(cl *Client) {
		cl.codec = c
	}
}

// WithDialer sets the dialer used for every call.
func WithDialer(d *net.Dialer) Option {
	return func(cl *Client) {
		cl.dialer = d
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cl *Client) {
		cl.log = l
	}
}

// Client is safe for concurrent use.
type Client struct {
	addr   string
	codec  jsonrpc.Codec
	dialer *net.Dialer
	log    logrus.FieldLogger
	nextID atomic.Uint64
}

// New creates a client for the server at addr.
func New(addr string, opts ...Option) *Client {
	c := &Client{
		addr:   addr,
		codec:  jsonrpc.JSON,
		dialer: &net.Dialer{},
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends one request and returns the decoded response envelope. A
// non-200 status yields *StatusError. Handler-level errors are left in the
// returned envelope.
func (c *Client) Call(ctx context.Context, method string, args map[string]any) (*jsonrpc.Response, error) {
	id := c.nextID.Add(1)
	body, err := c.codec.EncodeRequest(jsonrpc.NewRequest(method, args, id))
	if err != nil {
		return nil, fmt.Errorf("client: encoding request: %w", err)
	}

	start := time.Now()
	raw, err := c.exchange(ctx, body)
	if err != nil {
		return nil, err
	}
	log := c.log.WithFields(logrus.Fields{
		"rpc_method": method,
		"rpc_id":     id,
		"status":     raw.Status().Code(),
		"duration":   time.Since(start),
	})
	if raw.Status() != httpwire.StatusOK {
		log.Debug("call rejected")
		return nil, &StatusError{Status: raw.Status()}
	}

	resp, err := c.codec.DecodeResponse([]byte(raw.Body()))
	if err != nil {
		return nil, err
	}
	if resp.ID() != id {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrIDMismatch, id, resp.ID())
	}
	log.Debug("call completed")
	return resp, nil
}

// Invoke calls method and decodes its result into out, which may be nil. An
// error field in the response is returned as *RPCError.
func (c *Client) Invoke(ctx context.Context, method string, args map[string]any, out any) error {
	resp, err := c.Call(ctx, method, args)
	if err != nil {
		return err
	}
	if msg, ok := resp.Error(); ok {
		return &RPCError{Method: method, Message: msg}
	}
	result, ok := resp.Result()
	if !ok || out == nil {
		return nil
	}
	// Results decode as generic values; round-trip them into out.
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("client: decoding result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decoding result: %w", err)
	}
	return nil
}

type closeWriter interface {
	CloseWrite() error
}

func (c *Client) exchange(ctx context.Context, body []byte) (*httpwire.Response, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	defer conn.Close()

	// Runs only after ctx is done, so connError always sees ctx.Err.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	head := "POST / HTTP/1.1\r\n" +
		"Content-Type: " + c.codec.ContentType() + "\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n"
	if _, err := io.WriteString(conn, head); err != nil {
		return nil, c.connError(ctx, "write", err)
	}
	if _, err := conn.Write(body); err != nil {
		return nil, c.connError(ctx, "write", err)
	}
	// The server reads the body until end of stream or its read timeout.
	if cw, ok := conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			return nil, c.connError(ctx, "close write", err)
		}
	}

	resp, err := httpwire.ReadResponse(conn)
	if err != nil {
		return nil, c.connError(ctx, "read", err)
	}
	return resp, nil
}

// connError prefers the context's error when the context ended the call.
func (c *Client) connError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("client: %s: %w", op, ctxErr)
	}
	return fmt.Errorf("client: %s: %w", op, err)
}
