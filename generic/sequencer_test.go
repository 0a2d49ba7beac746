package generic_test

import (
	"sync"
	"testing"

	"github.com/orgdash/ledger-engine/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_LaterRequestResolvingFirst_OnlyLatestApplied(t *testing.T) {
	// GIVEN: fetch A then fetch B for payments, both in flight
	// WHEN: B resolves first, then A
	// THEN: only B's result is applied

	seq := generic.NewSequencer()
	var applied []string

	a := seq.Begin(generic.ResourcePayments)
	b := seq.Begin(generic.ResourcePayments)

	seq.Apply(b, func() { applied = append(applied, "B") })
	seq.Apply(a, func() { applied = append(applied, "A") })

	assert.Equal(t, []string{"B"}, applied)
}

func TestSequencer_ResourcesAreIndependent(t *testing.T) {
	seq := generic.NewSequencer()

	fee := seq.Begin(generic.ResourceFee)
	seq.Begin(generic.ResourceRoster)
	seq.Begin(generic.ResourceRoster)

	assert.True(t, seq.Accept(fee), "roster loads must not invalidate the fee load")
	assert.Equal(t, uint64(2), seq.Current(generic.ResourceRoster))
}

func TestSequencer_OnStaleCalledForDroppedTickets(t *testing.T) {
	var dropped []generic.Ticket
	seq := generic.NewSequencer()
	seq.OnStale = func(t generic.Ticket) { dropped = append(dropped, t) }

	old := seq.Begin(generic.ResourceLedger)
	latest := seq.Begin(generic.ResourceLedger)

	assert.False(t, seq.Accept(old))
	assert.True(t, seq.Accept(latest))
	require.Len(t, dropped, 1)
	assert.Equal(t, uint64(1), dropped[0].Seq)
}

func TestSequencer_ZeroValueUsable(t *testing.T) {
	var seq generic.Sequencer
	tk := seq.Begin(generic.ResourceFee)
	assert.True(t, seq.Accept(tk))
}

func TestSequencer_ConcurrentBegins_ExactlyOneAccepted(t *testing.T) {
	seq := generic.NewSequencer()
	const n = 50

	tickets := make([]generic.Ticket, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tickets[i] = seq.Begin(generic.ResourcePayments)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, tk := range tickets {
		if seq.Accept(tk) {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, uint64(n), seq.Current(generic.ResourcePayments))
}
