package httpwire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultVersion is the protocol version of a new Response.
const DefaultVersion = "HTTP/1.1"

var ErrMalformedStatusLine = errors.New("httpwire: malformed status line")

// Response is a response builder.
//
// Headers is kept for callers that want to carry metadata alongside the
// response, but it is never written: the wire form has no header lines.
type Response struct {
	version string
	status  Status

	Headers map[string]string
	body    strings.Builder
}

// NewResponse returns a 200 OK response for HTTP/1.1 with an empty body.
func NewResponse() *Response {
	return &Response{
		version: DefaultVersion,
		status:  StatusOK,
		Headers: make(map[string]string),
	}
}

// AppendBody appends s to the body. Earlier content is kept.
func (r *Response) AppendBody(s string) {
	r.body.WriteString(s)
}

func (r *Response) SetStatus(s Status) {
	r.status = s
}

func (r *Response) SetVersion(v string) {
	r.version = v
}

func (r *Response) Status() Status {
	return r.status
}

func (r *Response) Version() string {
	return r.version
}

func (r *Response) Body() string {
	return r.body.String()
}

// Serialize returns the exact wire form "<version> <code> <phrase>\r\n\r\n<body>".
// No Content-Length or Content-Type is emitted.
func (r *Response) Serialize() string {
	return r.version + " " + strconv.Itoa(r.status.Code()) + " " + r.status.Phrase() + "\r\n\r\n" + r.body.String()
}

// WriteTo implements io.WriterTo.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.Serialize())
	return int64(n), err
}

// ReadResponse parses a response written by Serialize, or by any HTTP/1.x
// server whose body runs until end of stream. Header lines between the status
// line and the blank line are stored in Headers. The reader is consumed to
// EOF.
func ReadResponse(rd io.Reader) (*Response, error) {
	br, ok := rd.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(rd)
	}

	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("httpwire: reading status line: %w", err)
	}
	version, rest, ok := strings.Cut(strings.TrimRight(line, "\r\n"), " ")
	if !ok {
		return nil, ErrMalformedStatusLine
	}
	codeStr, _, _ := strings.Cut(rest, " ")
	code, err := strconv.ParseUint(codeStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedStatusLine, line)
	}

	resp := NewResponse()
	resp.SetVersion(version)
	resp.SetStatus(Status(code))

	for {
		line, err = br.ReadString('\n')
		if line == "\r\n" || line == "\n" {
			break
		}
		if name, value, ok := strings.Cut(strings.TrimRight(line, "\r\n"), ": "); ok {
			resp.Headers[name] = value
		}
		if err == io.EOF {
			return resp, nil
		}
		if err != nil {
			return nil, fmt.Errorf("httpwire: reading headers: %w", err)
		}
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("httpwire: reading body: %w", err)
	}
	resp.AppendBody(string(body))
	return resp, nil
}
