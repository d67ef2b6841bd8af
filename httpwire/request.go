package httpwire

import "strings"

// Method is the request method. Only GET and POST are recognised; every
// other token, including case variants, is MethodUnknown.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	default:
		return "UNKNOWN"
	}
}

func parseMethod(token string) Method {
	switch token {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	default:
		return MethodUnknown
	}
}

// RequestLine holds the three fields of the first line of a request.
type RequestLine struct {
	Method  Method
	Path    string
	Version string
}

// Request is an incrementally built HTTP request: the request line first,
// then header lines, then body bytes.
//
// Header names are case-sensitive and the last value for a name wins. Body
// is only meaningful once the blank line ending the headers has been read.
type Request struct {
	line RequestLine

	Headers map[string]string
	Body    []byte
}

// NewRequest returns an empty request with MethodUnknown.
func NewRequest() *Request {
	return &Request{Headers: make(map[string]string)}
}

// ApplyRequestLine parses raw into the request line, replacing any previous
// one. The line is trimmed and split on single spaces; missing tokens leave
// MethodUnknown, an empty path and an empty version. It never fails.
func (r *Request) ApplyRequestLine(raw string) {
	tokens := strings.Split(strings.TrimSpace(raw), " ")

	var line RequestLine
	line.Method = parseMethod(tokens[0])
	if len(tokens) > 1 {
		line.Path = tokens[1]
	}
	if len(tokens) > 2 {
		line.Version = tokens[2]
	}
	r.line = line
}

// ApplyHeaderLine stores a "Name: Value" header. The line terminator is
// dropped; a line without the ": " separator is ignored.
func (r *Request) ApplyHeaderLine(raw string) {
	raw = strings.TrimSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\r")

	name, value, ok := strings.Cut(raw, ": ")
	if !ok {
		return
	}
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[name] = value
}

// AppendBody appends b to the body.
func (r *Request) AppendBody(b []byte) {
	r.Body = append(r.Body, b...)
}

// MethodIs reports whether the parsed method equals m.
func (r *Request) MethodIs(m Method) bool {
	return r.line.Method == m
}

func (r *Request) Method() Method {
	return r.line.Method
}

func (r *Request) Path() string {
	return r.line.Path
}

func (r *Request) Version() string {
	return r.line.Version
}

// Line returns a copy of the parsed request line.
func (r *Request) Line() RequestLine {
	return r.line
}

// Header returns the value stored for name, matched case-sensitively.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.Headers[name]
	return v, ok
}
