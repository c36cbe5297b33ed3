// Package discovery finds MusicCast devices on the local network.
package discovery

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNoDiscoverers is returned by a MultiDiscoverer with nothing to run.
var ErrNoDiscoverers = errors.New("no discoverers configured")

// Device is a reachable device as reported by a discovery mechanism.
type Device struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Discoverer returns the devices currently reachable on the network.
// Results are best-effort: a nil error with an empty slice is valid.
type Discoverer interface {
	Discover(ctx context.Context) ([]Device, error)
}

// MultiDiscoverer runs several discoverers and merges their results by address.
type MultiDiscoverer struct {
	discoverers []Discoverer
}

// NewMultiDiscoverer creates a discoverer merging the results of ds in order.
func NewMultiDiscoverer(ds ...Discoverer) *MultiDiscoverer {
	return &MultiDiscoverer{discoverers: ds}
}

// Discover runs every discoverer in turn. The first name reported for an
// address wins and the result is sorted by name. It fails only when every
// discoverer fails.
func (m *MultiDiscoverer) Discover(ctx context.Context) ([]Device, error) {
	if len(m.discoverers) == 0 {
		return nil, ErrNoDiscoverers
	}

	var (
		devices []Device
		errs    []error
	)
	seen := make(map[string]bool)

	for _, d := range m.discoverers {
		found, err := d.Discover(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("Discoverer failed")
			errs = append(errs, err)
			continue
		}
		for _, dev := range found {
			if dev.Address == "" || seen[dev.Address] {
				continue
			}
			seen[dev.Address] = true
			devices = append(devices, dev)
		}
	}

	if len(errs) == len(m.discoverers) {
		return nil, errors.Join(errs...)
	}

	sortDevices(devices)
	return devices, nil
}

func sortDevices(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		return strings.ToLower(devices[i].Name) < strings.ToLower(devices[j].Name)
	})
}
