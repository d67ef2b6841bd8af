// Package jsonrpc defines the call envelope exchanged in the body of an HTTP
// request, the Handler contract the server invokes, and codecs for the
// envelope.
//
// # Envelopes
//
// A request carries a method name, named arguments and a non-negative id:
//
//	{"method":"add","args":{"a":1,"b":"2"},"id":5}
//
// A response carries the same id and a result or an error message:
//
//	{"result":"1 + 2","id":5}
//	{"error":"method not found: sub","id":6}
//
// There is no "jsonrpc" version member, no positional params and no
// batching.
//
// # Handlers
//
// The server calls a single Handler for every request:
//
//	h := jsonrpc.HandlerFunc(func(ctx context.Context, req *jsonrpc.Request, resp *jsonrpc.Response) {
//	    resp.SetResult(req.Method())
//	})
//
// Domain failures are reported with resp.SetError; they do not change the
// HTTP status.
//
// # Registry
//
// Registry is a Handler that dispatches by method name to Go methods:
//
//	type MathMethods struct{}
//
//	type AddParams struct {
//	    _ struct{} `jsonrpc:"add"` // method name becomes "add"
//	    A int `json:"a"`
//	    B int `json:"b"`
//	}
//
//	func (m *MathMethods) Add(ctx context.Context, params AddParams) (int, error) {
//	    return params.A + params.B, nil
//	}
//
//	r := jsonrpc.NewRegistry()
//	r.Register("math", &MathMethods{}) // -> "math.add"
//
// Methods must have the signature
//
//	func(ctx context.Context, params <StructType>) (result, error)
//
// Args are bound to the params struct by json tags. Every tagged field is
// required unless it has the omitempty option.
//
// # Codecs
//
// JSON is the default codec. CBOR is used when the request's Content-Type
// header starts with "application/cbor"; see CodecFor.
package jsonrpc
