package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/mnehpets/onerpc/httpwire"
	"github.com/mnehpets/onerpc/jsonrpc"
)

// Framing selects how the pipeline finds the end of a request body.
type Framing int

const (
	// FramingTimeout reads until end of stream; a read timeout also ends the
	// body. Content-Length is ignored.
	FramingTimeout Framing = iota
	// FramingContentLength reads exactly Content-Length bytes when the header
	// is present and valid, and falls back to FramingTimeout otherwise.
	FramingContentLength
)

func (f Framing) String() string {
	switch f {
	case FramingTimeout:
		return "timeout"
	case FramingContentLength:
		return "content-length"
	default:
		return "framing(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParseFraming parses "timeout" or "content-length".
func ParseFraming(s string) (Framing, error) {
	switch s {
	case "timeout":
		return FramingTimeout, nil
	case "content-length":
		return FramingContentLength, nil
	default:
		return 0, fmt.Errorf("server: unknown body framing %q", s)
	}
}

// DefaultReadTimeout bounds each read from a client.
const DefaultReadTimeout = time.Second

// Conn is the part of a net.Conn the pipeline needs.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
}

// Outcome describes how one connection was handled.
type Outcome struct {
	// Status is the status written, or zero if the connection was dropped.
	Status httpwire.Status
	// RPCMethod and RPCID are set once the envelope has been decoded.
	RPCMethod string
	RPCID     uint64
	// Err is a *StageError for every outcome other than 200.
	Err error
}

// Pipeline parses one request from a connection, invokes Handler and writes
// exactly one response, or none if the request line cannot be read.
//
// A Pipeline holds no per-connection state; one value may serve many
// connections concurrently.
type Pipeline struct {
	Handler jsonrpc.Handler
	// ReadTimeout bounds every individual read. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration
	Framing     Framing
	// MaxBodyBytes rejects larger bodies with 400. Zero means no limit.
	MaxBodyBytes int64
	Logger       logrus.FieldLogger
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}

func (p *Pipeline) readTimeout() time.Duration {
	if p.ReadTimeout <= 0 {
		return DefaultReadTimeout
	}
	return p.ReadTimeout
}

// deadlineReader refreshes the read deadline before every read, so the
// timeout bounds how long a client may stall rather than the whole request.
type deadlineReader struct {
	conn    Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(b []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(b)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Serve runs the pipeline for one connection. It never closes conn.
func (p *Pipeline) Serve(ctx context.Context, conn Conn) Outcome {
	log := p.logger()
	timeout := p.readTimeout()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return p.reply(conn, httpwire.NewResponse(), stageError(StageConfigure, httpwire.StatusInternalServerError, err))
	}
	br := bufio.NewReader(&deadlineReader{conn: conn, timeout: timeout})

	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		log.WithError(err).Debug("dropping connection: no request line")
		return Outcome{Err: stageError(StageRequestLine, 0, err)}
	}

	req := httpwire.NewRequest()
	req.ApplyRequestLine(line)

	resp := httpwire.NewResponse()
	resp.SetVersion(req.Version())

	if !req.MethodIs(httpwire.MethodPost) {
		return p.reply(conn, resp, stageError(StageMethod, httpwire.StatusMethodNotAllowed, ErrMethodNotAllowed))
	}
	if !strings.HasPrefix(req.Version(), "HTTP/1") {
		return p.reply(conn, resp, stageError(StageVersion, httpwire.StatusHTTPVersionNotSupported, ErrVersionNotSupported))
	}

	readHeaders(br, req, log)

	body, err := p.readBody(br, req)
	if err != nil {
		return p.reply(conn, resp, stageError(StageBody, httpwire.StatusBadRequest, err))
	}
	req.AppendBody(body)

	contentType, _ := req.Header("Content-Type")
	codec := jsonrpc.CodecFor(contentType)
	if codec == jsonrpc.JSON && !utf8.Valid(req.Body) {
		return p.reply(conn, resp, stageError(StageDecode, httpwire.StatusBadRequest, ErrInvalidEncoding))
	}
	rpcReq, err := codec.DecodeRequest(req.Body)
	if err != nil {
		return p.reply(conn, resp, stageError(StageDecode, httpwire.StatusBadRequest, err))
	}

	rpcResp := jsonrpc.NewResponse(rpcReq.ID())
	if err := p.dispatch(ctx, rpcReq, rpcResp); err != nil {
		log.WithError(err).WithField("rpc_method", rpcReq.Method()).Error("handler failed")
		out := p.reply(conn, resp, stageError(StageDispatch, httpwire.StatusInternalServerError, err))
		out.RPCMethod, out.RPCID = rpcReq.Method(), rpcReq.ID()
		return out
	}

	var out Outcome
	encoded, err := codec.EncodeResponse(rpcResp)
	if err != nil {
		// Encoding failures are reported like decoding failures.
		out = p.reply(conn, resp, stageError(StageEncode, httpwire.StatusBadRequest, err))
	} else {
		resp.AppendBody(string(encoded))
		out = p.reply(conn, resp, nil)
	}
	out.RPCMethod, out.RPCID = rpcReq.Method(), rpcReq.ID()
	return out
}

// readHeaders consumes header lines up to the blank line. A read error ends
// the headers without failing the request.
func readHeaders(br *bufio.Reader, req *httpwire.Request, log logrus.FieldLogger) {
	for {
		line, err := br.ReadString('\n')
		if line == "\r\n" {
			return
		}
		if line != "" {
			req.ApplyHeaderLine(line)
		}
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Debug("header read ended early")
			}
			return
		}
	}
}

func (p *Pipeline) readBody(br *bufio.Reader, req *httpwire.Request) ([]byte, error) {
	if p.Framing == FramingContentLength {
		if v, ok := req.Header("Content-Length"); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err == nil && n >= 0 {
				return p.readSized(br, n)
			}
			p.logger().WithField("content_length", v).Debug("invalid Content-Length, reading body until timeout")
		}
	}

	var r io.Reader = br
	if p.MaxBodyBytes > 0 {
		r = io.LimitReader(br, p.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil && !isTimeout(err) {
		return nil, err
	}
	if p.MaxBodyBytes > 0 && int64(len(body)) > p.MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func (p *Pipeline) readSized(br *bufio.Reader, n int64) ([]byte, error) {
	if p.MaxBodyBytes > 0 && n > p.MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	// n comes from the client; only bytes actually received are allocated.
	body, err := io.ReadAll(io.LimitReader(br, n))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) != n {
		return nil, io.ErrUnexpectedEOF
	}
	return body, nil
}

func (p *Pipeline) dispatch(ctx context.Context, req *jsonrpc.Request, resp *jsonrpc.Response) (err error) {
	if p.Handler == nil {
		return ErrNilHandler
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	p.Handler.ServeRPC(ctx, req, resp)
	return nil
}

// reply writes resp with the status carried by serr, or 200 when serr is nil.
func (p *Pipeline) reply(w io.Writer, resp *httpwire.Response, serr *StageError) Outcome {
	out := Outcome{Status: httpwire.StatusOK}
	if serr != nil {
		out.Status = serr.Status
		out.Err = serr
	}
	resp.SetStatus(out.Status)

	if _, err := resp.WriteTo(w); err != nil {
		p.logger().WithError(err).WithField("status", out.Status.Code()).Warn("writing response failed")
		if out.Err == nil {
			out.Err = stageError(StageWrite, out.Status, err)
		}
	}
	return out
}
