package main

import (
	"context"
	"encoding/json"
	"fmt"
)

// demoService is registered without a namespace.
type demoService struct{}

type addParams struct {
	_ struct{}        `jsonrpc:"add"`
	A json.RawMessage `json:"a"`
	B string          `json:"b"`
}

// Add joins the JSON text of a with the string b: {"a":1,"b":"2"} gives
// "1 + 2".
func (s *demoService) Add(ctx context.Context, p addParams) (string, error) {
	return fmt.Sprintf("%s + %s", p.A, p.B), nil
}

type echoParams struct {
	_       struct{} `jsonrpc:"echo"`
	Message string   `json:"message"`
}

func (s *demoService) Echo(ctx context.Context, p echoParams) (string, error) {
	return p.Message, nil
}
