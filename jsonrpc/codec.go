package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

var (
	// ErrInvalidRequest is matched by every request decoding failure.
	ErrInvalidRequest = errors.New("jsonrpc: invalid request")
	// ErrInvalidResponse is matched by every response decoding failure.
	ErrInvalidResponse = errors.New("jsonrpc: invalid response")

	errMissingMethod = errors.New("missing method")
	errMissingArgs   = errors.New("missing args")
	errMissingID     = errors.New("missing id")
	errTrailingData  = errors.New("trailing data after envelope")
)

// DecodeError reports a structurally invalid envelope. It matches
// ErrInvalidRequest or ErrInvalidResponse with errors.Is.
type DecodeError struct {
	Kind  error
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *DecodeError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func invalidRequest(cause error) error {
	return &DecodeError{Kind: ErrInvalidRequest, Cause: cause}
}

func invalidResponse(cause error) error {
	return &DecodeError{Kind: ErrInvalidResponse, Cause: cause}
}

// Codec converts envelopes to and from bytes. Implementations must be safe
// for concurrent use.
type Codec interface {
	// ContentType is the media type of encoded envelopes.
	ContentType() string
	DecodeRequest(data []byte) (*Request, error)
	EncodeRequest(req *Request) ([]byte, error)
	DecodeResponse(data []byte) (*Response, error)
	EncodeResponse(resp *Response) ([]byte, error)
}

// CodecFor picks the codec for a Content-Type header value. Anything that
// is not CBOR is treated as JSON.
func CodecFor(contentType string) Codec {
	if strings.HasPrefix(contentType, ContentTypeCBOR) {
		return CBOR
	}
	return JSON
}

var (
	JSON Codec = JSONCodec{}
	CBOR Codec = CBORCodec{}
)

// wireRequest uses pointers so that absent and null fields can be told
// apart from zero values.
type wireRequest struct {
	Method *string        `json:"method" cbor:"method"`
	Args   map[string]any `json:"args" cbor:"args"`
	ID     *uint64        `json:"id" cbor:"id"`
}

func (w *wireRequest) request() (*Request, error) {
	switch {
	case w.Method == nil:
		return nil, invalidRequest(errMissingMethod)
	case w.Args == nil:
		return nil, invalidRequest(errMissingArgs)
	case w.ID == nil:
		return nil, invalidRequest(errMissingID)
	}
	return &Request{method: *w.Method, args: w.Args, id: *w.ID}, nil
}

type jsonResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
	ID     *uint64         `json:"id"`
}

// JSONCodec is the default codec. Numbers inside args and results decode as
// json.Number so that integers keep their exact text.
type JSONCodec struct{}

func (JSONCodec) ContentType() string {
	return ContentTypeJSON
}

// DecodeRequest matches the member names method, args and id exactly;
// other spellings are ignored like any unknown member.
func (JSONCodec) DecodeRequest(data []byte) (*Request, error) {
	var members map[string]json.RawMessage
	if err := decodeJSON(data, &members); err != nil {
		return nil, invalidRequest(err)
	}
	var w wireRequest
	fields := []struct {
		name string
		dst  any
	}{
		{"method", &w.Method},
		{"args", &w.Args},
		{"id", &w.ID},
	}
	for _, f := range fields {
		raw, ok := members[f.name]
		if !ok {
			continue
		}
		if err := decodeJSON(raw, f.dst); err != nil {
			return nil, invalidRequest(fmt.Errorf("%s: %w", f.name, err))
		}
	}
	return w.request()
}

func (JSONCodec) EncodeRequest(req *Request) ([]byte, error) {
	return marshalJSON(wireRequest{Method: &req.method, Args: req.args, ID: &req.id})
}

func (JSONCodec) DecodeResponse(data []byte) (*Response, error) {
	var w jsonResponse
	if err := decodeJSON(data, &w); err != nil {
		return nil, invalidResponse(err)
	}
	if w.ID == nil {
		return nil, invalidResponse(errMissingID)
	}
	resp := NewResponse(*w.ID)
	if w.Result != nil {
		var v any
		if err := decodeJSON(w.Result, &v); err != nil {
			return nil, invalidResponse(err)
		}
		resp.SetResult(v)
	}
	if w.Error != nil {
		resp.SetError(*w.Error)
	}
	return resp, nil
}

// EncodeResponse writes the fields in the order result, error, id. Unset
// result and error are omitted; a result explicitly set to nil is null.
func (JSONCodec) EncodeResponse(resp *Response) ([]byte, error) {
	w := jsonResponse{ID: &resp.id}
	if resp.hasResult {
		raw, err := marshalJSON(resp.result)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: encoding result: %w", err)
		}
		w.Result = raw
	}
	if resp.hasError {
		w.Error = &resp.errMsg
	}
	return marshalJSON(w)
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}

// marshalJSON is json.Marshal without HTML escaping or a trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

type cborResponse struct {
	Result cbor.RawMessage `cbor:"result,omitempty"`
	Error  *string         `cbor:"error,omitempty"`
	ID     *uint64         `cbor:"id"`
}

var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
		FieldNameMatching: cbor.FieldNameMatchingCaseSensitive,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// CBORCodec encodes envelopes as CBOR maps keyed by the same field names as
// the JSON form. Nested maps decode as map[string]any.
type CBORCodec struct{}

func (CBORCodec) ContentType() string {
	return ContentTypeCBOR
}

func (CBORCodec) DecodeRequest(data []byte) (*Request, error) {
	var w wireRequest
	if err := cborDecMode.Unmarshal(data, &w); err != nil {
		return nil, invalidRequest(err)
	}
	return w.request()
}

func (CBORCodec) EncodeRequest(req *Request) ([]byte, error) {
	return cbor.Marshal(wireRequest{Method: &req.method, Args: req.args, ID: &req.id})
}

func (CBORCodec) DecodeResponse(data []byte) (*Response, error) {
	var w cborResponse
	if err := cborDecMode.Unmarshal(data, &w); err != nil {
		return nil, invalidResponse(err)
	}
	if w.ID == nil {
		return nil, invalidResponse(errMissingID)
	}
	resp := NewResponse(*w.ID)
	if w.Result != nil {
		var v any
		if err := cborDecMode.Unmarshal(w.Result, &v); err != nil {
			return nil, invalidResponse(err)
		}
		resp.SetResult(v)
	}
	if w.Error != nil {
		resp.SetError(*w.Error)
	}
	return resp, nil
}

func (CBORCodec) EncodeResponse(resp *Response) ([]byte, error) {
	w := cborResponse{ID: &resp.id}
	if resp.hasResult {
		raw, err := cbor.Marshal(resp.result)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: encoding result: %w", err)
		}
		w.Result = raw
	}
	if resp.hasError {
		w.Error = &resp.errMsg
	}
	return cbor.Marshal(w)
}
