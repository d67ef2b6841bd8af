package jsonrpc

import "maps"

// Request is a decoded call envelope: a method name, named arguments and a
// correlation id. It is immutable once decoded.
type Request struct {
	method string
	args   map[string]any
	id     uint64
}

// NewRequest builds a request. args is copied.
func NewRequest(method string, args map[string]any, id uint64) *Request {
	if args == nil {
		args = map[string]any{}
	} else {
		args = maps.Clone(args)
	}
	return &Request{method: method, args: args, id: id}
}

func (r *Request) Method() string {
	return r.method
}

func (r *Request) ID() uint64 {
	return r.id
}

// Arg returns the argument stored under name.
func (r *Request) Arg(name string) (any, bool) {
	v, ok := r.args[name]
	return v, ok
}

// Args returns a copy of all arguments.
func (r *Request) Args() map[string]any {
	return maps.Clone(r.args)
}

// Response is the reply envelope. It carries the request id and at most one
// of a result or an error message; handlers are expected to set exactly one.
type Response struct {
	id        uint64
	result    any
	hasResult bool
	errMsg    string
	hasError  bool
}

// NewResponse returns an empty response correlated to id.
func NewResponse(id uint64) *Response {
	return &Response{id: id}
}

func (r *Response) ID() uint64 {
	return r.id
}

func (r *Response) SetResult(v any) {
	r.result = v
	r.hasResult = true
}

func (r *Response) SetError(msg string) {
	r.errMsg = msg
	r.hasError = true
}

// Result returns the result and whether one was set.
func (r *Response) Result() (any, bool) {
	return r.result, r.hasResult
}

// Error returns the error message and whether one was set.
func (r *Response) Error() (string, bool) {
	return r.errMsg, r.hasError
}
