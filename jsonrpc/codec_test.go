package jsonrpc

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestJSONDecodeRequest(t *testing.T) {
	req, err := JSON.DecodeRequest([]byte(`{"method":"add","args":{"a":1,"b":"2","c":{"d":[true]}},"id":5}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Method() != "add" || req.ID() != 5 {
		t.Errorf("got method %q id %d", req.Method(), req.ID())
	}
	if a, _ := req.Arg("a"); a != json.Number("1") {
		t.Errorf("a = %#v, want json.Number(\"1\")", a)
	}
	if b, _ := req.Arg("b"); b != "2" {
		t.Errorf("b = %#v", b)
	}
	c, _ := req.Arg("c")
	want := map[string]any{"d": []any{true}}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("c = %#v, want %#v", c, want)
	}
	if _, ok := req.Arg("missing"); ok {
		t.Error("unexpected arg")
	}
}

func TestJSONDecodeRequestInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"not json", `hello`},
		{"truncated", `{"method":"add","args":{},"id":1`},
		{"array", `[{"method":"add","args":{},"id":1}]`},
		{"null", `null`},
		{"missing method", `{"args":{},"id":1}`},
		{"missing args", `{"method":"add","id":1}`},
		{"missing id", `{"method":"add","args":{}}`},
		{"null args", `{"method":"add","args":null,"id":1}`},
		{"method not string", `{"method":1,"args":{},"id":1}`},
		{"args not object", `{"method":"add","args":[1,2],"id":1}`},
		{"negative id", `{"method":"add","args":{},"id":-1}`},
		{"fractional id", `{"method":"add","args":{},"id":1.5}`},
		{"string id", `{"method":"add","args":{},"id":"1"}`},
		{"trailing data", `{"method":"add","args":{},"id":1} {}`},
		{"upper-case members", `{"METHOD":"add","ARGS":{},"ID":1}`},
		{"mixed-case members", `{"Method":"add","Args":{},"Id":1}`},
		{"only id mis-cased", `{"method":"add","args":{},"ID":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON.DecodeRequest([]byte(tt.body))
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("err %T is not a *DecodeError", err)
			}
		})
	}
}

func TestJSONDecodeRequestAllowsWhitespaceAndUnknownFields(t *testing.T) {
	req, err := JSON.DecodeRequest([]byte(" {\"jsonrpc\":\"2.0\",\"method\":\"m\",\"args\":{},\"id\":0}\r\n"))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Method() != "m" || req.ID() != 0 {
		t.Errorf("got %q/%d", req.Method(), req.ID())
	}
}

func TestJSONDecodeRequestIgnoresCaseVariants(t *testing.T) {
	req, err := JSON.DecodeRequest([]byte(`{"method":"add","METHOD":"sub","args":{},"Args":{"x":1},"id":1,"ID":2}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Method() != "add" || req.ID() != 1 || len(req.Args()) != 0 {
		t.Errorf("got %q/%d/%v, want add/1/empty", req.Method(), req.ID(), req.Args())
	}
}

func TestJSONEncodeResponse(t *testing.T) {
	tests := []struct {
		name string
		resp func() *Response
		want string
	}{
		{"result", func() *Response {
			r := NewResponse(5)
			r.SetResult("1 + 2")
			return r
		}, `{"result":"1 + 2","id":5}`},
		{"error", func() *Response {
			r := NewResponse(6)
			r.SetError("boom")
			return r
		}, `{"error":"boom","id":6}`},
		{"neither", func() *Response { return NewResponse(7) }, `{"id":7}`},
		{"nil result", func() *Response {
			r := NewResponse(8)
			r.SetResult(nil)
			return r
		}, `{"result":null,"id":8}`},
		{"no html escaping", func() *Response {
			r := NewResponse(9)
			r.SetResult("<a&b>")
			return r
		}, `{"result":"<a&b>","id":9}`},
		{"structured", func() *Response {
			r := NewResponse(10)
			r.SetResult(map[string]any{"n": json.Number("12345678901234567890")})
			return r
		}, `{"result":{"n":12345678901234567890},"id":10}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSON.EncodeResponse(tt.resp())
			if err != nil {
				t.Fatalf("EncodeResponse: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJSONEncodeResponseFailure(t *testing.T) {
	for _, v := range []any{math.NaN(), make(chan int), func() {}} {
		r := NewResponse(1)
		r.SetResult(v)
		if _, err := JSON.EncodeResponse(r); err == nil {
			t.Errorf("EncodeResponse(%T) succeeded, want error", v)
		}
	}
}

func TestJSONResponseRoundTrip(t *testing.T) {
	r := NewResponse(7)
	r.SetResult("hi")
	data, err := JSON.EncodeResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := JSON.DecodeResponse(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != 7 {
		t.Errorf("id = %d, want 7", got.ID())
	}
	if res, ok := got.Result(); !ok || res != "hi" {
		t.Errorf("result = %v, %v", res, ok)
	}
	if _, ok := got.Error(); ok {
		t.Error("error should be absent")
	}
}

func TestJSONRequestRoundTrip(t *testing.T) {
	data, err := JSON.EncodeRequest(NewRequest("concat", map[string]any{"a": 1, "b": "2"}, 3))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"method":"concat","args":{"a":1,"b":"2"},"id":3}`; string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
	req, err := JSON.DecodeRequest(data)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method() != "concat" || req.ID() != 3 || len(req.Args()) != 2 {
		t.Errorf("round trip mismatch: %q %d %v", req.Method(), req.ID(), req.Args())
	}
}

func TestJSONDecodeResponseInvalid(t *testing.T) {
	for _, body := range []string{``, `{`, `{"result":1}`, `{"id":-3}`} {
		if _, err := JSON.DecodeResponse([]byte(body)); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("DecodeResponse(%q) err = %v, want ErrInvalidResponse", body, err)
		}
	}
}

func TestCBORRoundTrip(t *testing.T) {
	data, err := CBOR.EncodeRequest(NewRequest("concat", map[string]any{"a": 1, "b": "2", "n": map[string]any{"x": "y"}}, 11))
	if err != nil {
		t.Fatal(err)
	}
	req, err := CBOR.DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Method() != "concat" || req.ID() != 11 {
		t.Errorf("got %q/%d", req.Method(), req.ID())
	}
	if a, _ := req.Arg("a"); a != uint64(1) {
		t.Errorf("a = %#v", a)
	}
	if n, _ := req.Arg("n"); !reflect.DeepEqual(n, map[string]any{"x": "y"}) {
		t.Errorf("n = %#v, want map[string]any", n)
	}

	resp := NewResponse(req.ID())
	resp.SetResult("1 + 2")
	data, err = CBOR.EncodeResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, err := CBOR.DecodeResponse(data)
	if err != nil {
		t.Fatal(err)
	}
	if res, _ := got.Result(); got.ID() != 11 || res != "1 + 2" {
		t.Errorf("got id %d result %v", got.ID(), res)
	}
	if _, ok := got.Error(); ok {
		t.Error("error should be absent")
	}
}

func TestCBORDecodeRequestInvalid(t *testing.T) {
	responseEnvelope, err := CBOR.EncodeResponse(NewResponse(1))
	if err != nil {
		t.Fatal(err)
	}
	upperCase, err := cbor.Marshal(map[string]any{"METHOD": "add", "Args": map[string]any{}, "ID": 1})
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string][]byte{
		"case-variant keys": upperCase,
		"empty":             nil,
		"garbage":           {0xff, 0x00},
		"json text":         []byte(`{"method":"a","args":{},"id":1}`),
		"response envelope": responseEnvelope,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := CBOR.DecodeRequest(body); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestCodecFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        Codec
	}{
		{"", JSON},
		{"application/json", JSON},
		{"text/plain", JSON},
		{"application/cbor", CBOR},
		{"application/cbor; charset=binary", CBOR},
	}
	for _, tt := range tests {
		if got := CodecFor(tt.contentType); got != tt.want {
			t.Errorf("CodecFor(%q) = %T, want %T", tt.contentType, got, tt.want)
		}
	}
}
