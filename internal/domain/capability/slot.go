package capability

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
)

// Status describes what a slot holds for an address.
type Status int

const (
	NotFetched Status = iota
	Fetched
	Failed
)

func (s Status) String() string {
	switch s {
	case Fetched:
		return "fetched"
	case Failed:
		return "failed"
	default:
		return "not_fetched"
	}
}

// Result is the outcome of a fetch. Failures carry Err and its status Code.
// Recorded is set when the result was served from memory without I/O.
type Result[T any] struct {
	Value    T
	Err      error
	Code     string
	Recorded bool
}

// OK reports whether the fetch succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// FetchFunc loads one datum for an address.
type FetchFunc[T any] func(ctx context.Context, address string) (T, error)

// Slot memoizes one datum kind per address. Concurrent Ensure calls for the
// same address share a single fetch. Both successes and failures are kept
// until invalidated.
type Slot[T any] struct {
	fetch     FetchFunc[T]
	onFailure func() T

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]Result[T]
	gens    map[string]uint64
	epoch   uint64
}

// NewSlot creates a slot backed by fetch. onFailure, when non-nil, supplies
// the value stored alongside a failed fetch.
func NewSlot[T any](fetch FetchFunc[T], onFailure func() T) *Slot[T] {
	return &Slot[T]{
		fetch:     fetch,
		onFailure: onFailure,
		entries:   make(map[string]Result[T]),
		gens:      make(map[string]uint64),
	}
}

// token identifies the cache generation an in-flight fetch belongs to.
type token struct {
	epoch uint64
	gen   uint64
}

func (t token) key(address string) string {
	return address + "#" + strconv.FormatUint(t.epoch, 10) + "." + strconv.FormatUint(t.gen, 10)
}

func (s *Slot[T]) tokenLocked(address string) token {
	return token{epoch: s.epoch, gen: s.gens[address]}
}

// Get returns the memoized result without doing any I/O.
func (s *Slot[T]) Get(address string) (Result[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.entries[address]
	if ok {
		r.Recorded = true
	}
	return r, ok
}

// Status reports whether address has a memoized success or failure.
func (s *Slot[T]) Status(address string) Status {
	r, ok := s.Get(address)
	switch {
	case !ok:
		return NotFetched
	case r.OK():
		return Fetched
	default:
		return Failed
	}
}

// Ensure returns the memoized result, fetching it first if needed.
// The fetch is detached from ctx cancellation so a departing caller does not
// record a cancellation as the device's failure.
func (s *Slot[T]) Ensure(ctx context.Context, address string) Result[T] {
	if r, ok := s.Get(address); ok {
		return r
	}

	s.mu.Lock()
	tok := s.tokenLocked(address)
	s.mu.Unlock()

	v, _, _ := s.group.Do(tok.key(address), func() (any, error) {
		// A flight that finished just before this one started may have stored it.
		if r, ok := s.Get(address); ok {
			return r, nil
		}

		value, err := s.fetch(context.WithoutCancel(ctx), address)
		r := Result[T]{Value: value, Err: err}
		if err != nil {
			r.Code = musiccast.Code(err)
			if s.onFailure != nil {
				r.Value = s.onFailure()
			}
		}

		s.mu.Lock()
		if s.tokenLocked(address) == tok {
			s.entries[address] = r
		}
		s.mu.Unlock()

		return r, nil
	})
	return v.(Result[T])
}

// Invalidate clears the entry of one address.
func (s *Slot[T]) Invalidate(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, address)
	s.gens[address]++
}

// InvalidateAll clears every entry.
func (s *Slot[T]) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Result[T])
	s.epoch++
}

// Len returns the number of memoized entries.
func (s *Slot[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
