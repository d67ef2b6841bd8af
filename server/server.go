// Package server accepts TCP connections and runs the request pipeline on
// each of them: read one HTTP/1.x request, decode the JSON-RPC envelope,
// invoke the Handler, write one response and close the connection.
//
// Basic usage:
//
//	srv := server.New(handler, server.WithWorkers(32))
//	task, err := srv.Start(":11122")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(task.Wait())
//
// Connections are served concurrently by a bounded worker pool; the
// Handler must be safe for concurrent use.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mnehpets/onerpc/jsonrpc"
)

// DefaultWorkers is the worker pool size used by New.
const DefaultWorkers = 64

// Option configures a Server.
type Option func(*Server)

// WithReadTimeout bounds every read from a client.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.pipeline.ReadTimeout = d
	}
}

// WithWorkers sets the number of connections served at once. Zero or less
// serves every connection on its own goroutine.
func WithWorkers(n int) Option {
	return func(s *Server) {
		s.workers = n
	}
}

// WithFraming selects how request bodies are delimited.
func WithFraming(f Framing) Option {
	return func(s *Server) {
		s.pipeline.Framing = f
	}
}

// WithMaxBodyBytes limits request bodies. Zero means no limit.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.pipeline.MaxBodyBytes = n
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// Server serves JSON-RPC requests, one per TCP connection.
type Server struct {
	pipeline Pipeline
	workers  int
	log      logrus.FieldLogger
	stats    Stats

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	closed    bool
	serving   atomic.Int32
}

// New creates a server that dispatches every request to h.
func New(h jsonrpc.Handler, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		pipeline:  Pipeline{Handler: h, ReadTimeout: DefaultReadTimeout},
		workers:   DefaultWorkers,
		log:       logrus.StandardLogger(),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Task is the handle of a server started in the background.
type Task struct {
	addr net.Addr
	done chan struct{}
	err  error
}

// Addr is the bound listener address.
func (t *Task) Addr() net.Addr {
	return t.addr
}

// Done is closed when the accept loop and all its connections have finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes. It returns nil after Shutdown.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Start binds addr and serves it on a new goroutine. Bind failures are
// returned immediately.
func (s *Server) Start(addr string) (*Task, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.log.WithField("addr", l.Addr().String()).Info("listening")

	t := &Task{addr: l.Addr(), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		if err := s.Serve(l); !errors.Is(err, ErrServerClosed) {
			t.err = err
		}
	}()
	return t, nil
}

// Serve accepts connections on l until Shutdown is called, then waits for
// the connections it accepted. It always returns a non-nil error;
// ErrServerClosed after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listeners[l] = struct{}{}
	s.serving.Add(1)
	s.mu.Unlock()

	pool := newPool(s.workers, func(c net.Conn) {
		s.ServeConn(s.ctx, c)
	})
	defer func() {
		pool.Close()
		s.mu.Lock()
		delete(s.listeners, l)
		s.mu.Unlock()
		s.serving.Add(-1)
	}()

	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.log.WithError(err).WithField("retry_in", backoff).Warn("accept failed")
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		pool.Dispatch(conn)
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ServeConn runs the pipeline on conn, records the outcome and closes conn.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) Outcome {
	start := time.Now()
	s.stats.begin()

	log := s.log.WithFields(logrus.Fields{
		"conn_id":     uuid.NewString(),
		"remote_addr": conn.RemoteAddr().String(),
	})

	p := s.pipeline
	p.Logger = log
	out := s.serveRecovered(ctx, &p, conn, log)
	s.stats.end(out.Status)

	if err := conn.Close(); err != nil {
		log.WithError(err).Debug("closing connection failed")
	}

	entry := log.WithFields(logrus.Fields{
		"status":   out.Status.Code(),
		"duration": time.Since(start),
	})
	if out.RPCMethod != "" {
		entry = entry.WithFields(logrus.Fields{"rpc_method": out.RPCMethod, "rpc_id": out.RPCID})
	}
	switch {
	case out.Status == 0:
		entry.WithError(out.Err).Debug("connection dropped")
	case out.Err != nil:
		entry.WithError(out.Err).Info("request rejected")
	default:
		entry.Info("request served")
	}
	return out
}

// serveRecovered keeps a panic inside the pipeline from reaching the accept
// loop; the connection is dropped without a response.
func (s *Server) serveRecovered(ctx context.Context, p *Pipeline, conn net.Conn, log logrus.FieldLogger) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("pipeline panic")
			out = Outcome{Err: stageError(StageDispatch, 0, fmt.Errorf("%w: %v", ErrPipelinePanic, r))}
		}
	}()
	return p.Serve(ctx, conn)
}

// Stats returns a snapshot of the connection counters.
func (s *Server) Stats() Snapshot {
	return s.stats.Snapshot()
}

// Shutdown stops accepting connections and waits for in-flight ones to
// finish. If ctx ends first, handler contexts are cancelled and ctx's error
// is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var err error
	for l := range s.listeners {
		if cerr := l.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.mu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.serving.Load() == 0 && s.stats.InFlight() == 0 {
			s.cancel()
			return err
		}
		select {
		case <-ctx.Done():
			s.cancel()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
