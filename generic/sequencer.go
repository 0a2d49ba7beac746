/*
sequencer.go - Stale async result suppression

PURPOSE:
  A dashboard session can have several loads in flight for the same
  logical resource: the user toggles the semester twice before the first
  payments query returns. Without a guard, the slower (older) answer can
  land last and overwrite the newer one.

RULE:
  1. Before issuing a load: ticket := seq.Begin(resource)
  2. When the load completes: if !seq.Accept(ticket) { drop the result }
  3. Accept is true only when no newer ticket was issued for the resource

  Nothing is cancelled. The network request still runs to completion; only
  the application of its result is suppressed. Stale results are not
  errors.

EXAMPLE:
  t := seq.Begin(generic.ResourcePayments)
  payments, err := client.Payments(ctx, feeID, filter)
  if !seq.Accept(t) {
      return nil // superseded
  }
  session.payments = payments
*/
package generic

import "sync"

// Ticket identifies one issued load.
type Ticket struct {
	Resource Resource
	Seq      uint64
}

// Sequencer owns one monotonically increasing counter per resource.
// It is safe for concurrent use.
type Sequencer struct {
	mu       sync.Mutex
	counters map[Resource]uint64

	// OnStale, if set, is called (outside the lock) for every rejected ticket.
	OnStale func(Ticket)
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{counters: make(map[Resource]uint64)}
}

// Begin issues the next ticket for r.
func (s *Sequencer) Begin(r Resource) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters == nil {
		s.counters = make(map[Resource]uint64)
	}
	s.counters[r]++
	return Ticket{Resource: r, Seq: s.counters[r]}
}

// Current returns the latest issued sequence number for r (0 if none).
func (s *Sequencer) Current(r Resource) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[r]
}

// Accept reports whether t is still the latest ticket for its resource.
func (s *Sequencer) Accept(t Ticket) bool {
	s.mu.Lock()
	ok := s.counters[t.Resource] == t.Seq
	s.mu.Unlock()
	if !ok && s.OnStale != nil {
		s.OnStale(t)
	}
	return ok
}

// Apply runs apply only if t is still current. The check and the apply
// happen under the sequencer lock, so a newer ticket cannot be issued in
// between.
func (s *Sequencer) Apply(t Ticket, apply func()) bool {
	s.mu.Lock()
	ok := s.counters[t.Resource] == t.Seq
	if ok {
		apply()
	}
	s.mu.Unlock()
	if !ok && s.OnStale != nil {
		s.OnStale(t)
	}
	return ok
}
