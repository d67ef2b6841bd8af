package server

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/mnehpets/onerpc/httpwire"
)

// Snapshot is a point-in-time copy of the server counters.
type Snapshot struct {
	Accepted uint64            `json:"accepted"`
	Aborted  uint64            `json:"aborted"`
	InFlight int64             `json:"in_flight"`
	ByStatus map[string]uint64 `json:"by_status"`
}

// Stats counts connections. The pipeline never reads it.
type Stats struct {
	accepted atomic.Uint64
	aborted  atomic.Uint64
	inFlight atomic.Int64

	mu       sync.Mutex
	byStatus map[httpwire.Status]uint64
}

func (s *Stats) begin() {
	s.accepted.Add(1)
	s.inFlight.Add(1)
}

func (s *Stats) end(status httpwire.Status) {
	s.inFlight.Add(-1)
	if status == 0 {
		s.aborted.Add(1)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byStatus == nil {
		s.byStatus = make(map[httpwire.Status]uint64)
	}
	s.byStatus[status]++
}

// InFlight returns the number of connections currently being served.
func (s *Stats) InFlight() int64 {
	return s.inFlight.Load()
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Accepted: s.accepted.Load(),
		Aborted:  s.aborted.Load(),
		InFlight: s.inFlight.Load(),
		ByStatus: make(map[string]uint64),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for status, n := range s.byStatus {
		snap.ByStatus[strconv.Itoa(status.Code())] = n
	}
	return snap
}
