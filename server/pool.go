package server

import (
	"net"
	"sync"
)

// connPool hands accepted connections to a fixed set of workers. With no
// workers every connection gets its own goroutine.
type connPool struct {
	conns chan net.Conn
	serve func(net.Conn)
	wg    sync.WaitGroup
}

// newPool starts count workers, each running serve for one connection at a
// time.
func newPool(count int, serve func(net.Conn)) *connPool {
	p := &connPool{serve: serve}
	if count <= 0 {
		return p
	}

	p.conns = make(chan net.Conn)
	for i := 0; i < count; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for c := range p.conns {
				p.serve(c)
			}
		}()
	}
	return p
}

// Dispatch blocks until a worker takes c.
func (p *connPool) Dispatch(c net.Conn) {
	if p.conns == nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.serve(c)
		}()
		return
	}
	p.conns <- c
}

// Close stops the workers once they finish their current connection. It
// must not be called concurrently with Dispatch.
func (p *connPool) Close() {
	if p.conns != nil {
		close(p.conns)
	}
	p.wg.Wait()
}
