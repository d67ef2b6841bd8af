package jsonrpc

import "context"

// Handler performs the domain logic for one call.
//
// Protocol:
//   - ServeRPC SHOULD call exactly one of resp.SetResult or resp.SetError.
//     A response with neither is sent as-is.
//   - ServeRPC MUST be safe for concurrent use; the server shares one Handler
//     across all connections.
//   - ctx is cancelled when the server shuts down. It carries no connection
//     details.
type Handler interface {
	ServeRPC(ctx context.Context, req *Request, resp *Response)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, req *Request, resp *Response)

func (f HandlerFunc) ServeRPC(ctx context.Context, req *Request, resp *Response) {
	f(ctx, req, resp)
}
