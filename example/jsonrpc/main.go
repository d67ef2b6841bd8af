package main

import (
	"context"
	"log"

	"github.com/mnehpets/onerpc/client"
	"github.com/mnehpets/onerpc/jsonrpc"
	"github.com/mnehpets/onerpc/server"
)

type MathMethods struct{}

type SubParams struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (m *MathMethods) Sub(ctx context.Context, args SubParams) (int, error) {
	return args.A - args.B, nil
}

func main() {
	r := jsonrpc.NewRegistry()
	r.Register("math", &MathMethods{})

	srv := server.New(r)
	task, err := srv.Start("127.0.0.1:8080")
	if err != nil {
		log.Fatal(err)
	}

	c := client.New(task.Addr().String())
	var diff int
	if err := c.Invoke(context.Background(), "math.Sub", map[string]any{"a": 5, "b": 3}, &diff); err != nil {
		log.Fatal(err)
	}
	log.Printf("math.Sub(5, 3) = %d", diff)

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Fatal(err)
	}
	if err := task.Wait(); err != nil {
		log.Fatal(err)
	}
}
