// Package capability lazily fetches and memoizes per-device descriptors:
// the identity, the capability manifest and the main zone program list.
package capability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
)

// DefaultConcurrency bounds the parallel identity fetches of a bulk ensure.
const DefaultConcurrency = 8

// Kind names a cached datum.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindManifest Kind = "manifest"
	KindPrograms Kind = "programs"
)

// ParseKind validates a datum kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindIdentity, KindManifest, KindPrograms:
		return k, nil
	}
	return "", fmt.Errorf("unknown datum kind %q", s)
}

// Fetcher is the part of the transport client the cache reads from.
type Fetcher interface {
	GetDeviceInfo(ctx context.Context, address string) (*musiccast.DeviceInfo, error)
	GetFeatures(ctx context.Context, address string) (*musiccast.Features, error)
	GetSoundProgramList(ctx context.Context, address, zone string) (*musiccast.ZoneProgramList, error)
}

// Entry is one address of a bulk identity ensure.
type Entry struct {
	Address string
	Result  Result[*musiccast.DeviceInfo]
}

// Cache holds the identity, manifest and program list slots.
type Cache struct {
	identity *Slot[*musiccast.DeviceInfo]
	manifest *Slot[*musiccast.Features]
	programs *Slot[[]string]

	concurrency int
}

// Option configures a Cache.
type Option func(*Cache)

// WithConcurrency sets how many identity fetches a bulk ensure runs at once.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a cache reading from f.
func New(f Fetcher, opts ...Option) *Cache {
	c := &Cache{
		identity: NewSlot(func(ctx context.Context, address string) (*musiccast.DeviceInfo, error) {
			info, err := f.GetDeviceInfo(ctx, address)
			logFetch(address, KindIdentity, err)
			return info, err
		}, nil),
		manifest: NewSlot(func(ctx context.Context, address string) (*musiccast.Features, error) {
			features, err := f.GetFeatures(ctx, address)
			logFetch(address, KindManifest, err)
			return features, err
		}, nil),
		programs: NewSlot(func(ctx context.Context, address string) ([]string, error) {
			pl, err := f.GetSoundProgramList(ctx, address, musiccast.MainZone)
			logFetch(address, KindPrograms, err)
			if err != nil {
				return []string{}, err
			}
			if pl.SoundProgramList == nil {
				return []string{}, nil
			}
			return pl.SoundProgramList, nil
		}, func() []string { return []string{} }),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func logFetch(address string, kind Kind, err error) {
	if err != nil {
		log.Debug().Err(err).Str("address", address).Str("kind", string(kind)).
			Str("code", musiccast.Code(err)).Msg("Capability fetch failed")
		return
	}
	log.Debug().Str("address", address).Str("kind", string(kind)).Msg("Capability fetched")
}

// Identity returns the memoized identity without I/O.
func (c *Cache) Identity(address string) (Result[*musiccast.DeviceInfo], bool) {
	return c.identity.Get(address)
}

// EnsureIdentity returns the identity, fetching it once if needed.
func (c *Cache) EnsureIdentity(ctx context.Context, address string) Result[*musiccast.DeviceInfo] {
	return c.identity.Ensure(ctx, address)
}

// Manifest returns the memoized capability manifest without I/O.
func (c *Cache) Manifest(address string) (Result[*musiccast.Features], bool) {
	return c.manifest.Get(address)
}

// EnsureManifest returns the capability manifest, fetching it once if needed.
func (c *Cache) EnsureManifest(ctx context.Context, address string) Result[*musiccast.Features] {
	return c.manifest.Ensure(ctx, address)
}

// Programs returns the memoized program list without I/O.
func (c *Cache) Programs(address string) (Result[[]string], bool) {
	return c.programs.Get(address)
}

// EnsurePrograms returns the program list, fetching it once if needed.
// A failed fetch is kept as an empty list.
func (c *Cache) EnsurePrograms(ctx context.Context, address string) Result[[]string] {
	return c.programs.Ensure(ctx, address)
}

// ProgramList returns the program names of a device, empty when the fetch failed.
func (c *Cache) ProgramList(ctx context.Context, address string) []string {
	return c.programs.Ensure(ctx, address).Value
}

// IsManageable reports whether a successful identity is memoized for address.
func (c *Cache) IsManageable(address string) bool {
	return c.identity.Status(address) == Fetched
}

// Status reports the state of one datum of one address.
func (c *Cache) Status(address string, kind Kind) Status {
	switch kind {
	case KindIdentity:
		return c.identity.Status(address)
	case KindManifest:
		return c.manifest.Status(address)
	case KindPrograms:
		return c.programs.Status(address)
	}
	return NotFetched
}

// BulkEnsureIdentity ensures the identity of every address. Only addresses
// without a memoized result are fetched. Entries follow the order of
// addresses; repeated addresses appear once.
func (c *Cache) BulkEnsureIdentity(ctx context.Context, addresses []string) []Entry {
	entries := make([]Entry, 0, len(addresses))
	seen := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		entries = append(entries, Entry{Address: a})
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	fetched := 0
	for i := range entries {
		if r, ok := c.identity.Get(entries[i].Address); ok {
			entries[i].Result = r
			continue
		}
		fetched++
		g.Go(func() error {
			entries[i].Result = c.identity.Ensure(ctx, entries[i].Address)
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().Int("addresses", len(entries)).Int("fetched", fetched).Msg("Bulk identity ensure finished")
	return entries
}

// Invalidate clears one datum of one address.
func (c *Cache) Invalidate(address string, kind Kind) {
	switch kind {
	case KindIdentity:
		c.identity.Invalidate(address)
	case KindManifest:
		c.manifest.Invalidate(address)
	case KindPrograms:
		c.programs.Invalidate(address)
	}
}

// InvalidateDevice clears every datum of one address.
func (c *Cache) InvalidateDevice(address string) {
	c.identity.Invalidate(address)
	c.manifest.Invalidate(address)
	c.programs.Invalidate(address)
}

// InvalidateAll clears every datum of every address.
func (c *Cache) InvalidateAll() {
	c.identity.InvalidateAll()
	c.manifest.InvalidateAll()
	c.programs.InvalidateAll()
	log.Info().Msg("Capability cache cleared")
}
