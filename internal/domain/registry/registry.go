// Package registry keeps the set of known MusicCast devices: those found by
// discovery merged with the addresses a user added by hand.
package registry

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-musiccast/internal/domain/capability"
	"github.com/edumarques81/stellar-musiccast/internal/infra/discovery"
	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
)

// ManualStore persists manually added addresses.
type ManualStore interface {
	ManualAddresses() ([]string, error)
	AddManualAddress(address string) error
	RemoveManualAddress(address string) error
}

// Identities is the part of the capability cache the registry consults.
type Identities interface {
	IsManageable(address string) bool
	Identity(address string) (capability.Result[*musiccast.DeviceInfo], bool)
	BulkEnsureIdentity(ctx context.Context, addresses []string) []capability.Entry
}

// Device is a known device as presented to consumers.
type Device struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Discovered bool   `json:"discovered"`
	Manual     bool   `json:"manual"`
	Manageable bool   `json:"manageable"`
}

// Registry merges discovery results with manual addresses, keyed by address.
type Registry struct {
	discoverer discovery.Discoverer
	store      ManualStore
	identities Identities

	mu         sync.RWMutex
	discovered []discovery.Device
	known      map[string]bool
	manual     []string

	listenersMu sync.Mutex
	listeners   []func()
}

// New creates a registry. Manual addresses are loaded from store.
func New(d discovery.Discoverer, store ManualStore, identities Identities) (*Registry, error) {
	r := &Registry{
		discoverer: d,
		store:      store,
		identities: identities,
		known:      make(map[string]bool),
	}

	if store != nil {
		addrs, err := store.ManualAddresses()
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			if !slices.Contains(r.manual, a) {
				r.manual = append(r.manual, a)
			}
		}
	}
	return r, nil
}

// OnChange registers fn to be called after the device set or manual list changes.
func (r *Registry) OnChange(fn func()) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify() {
	r.listenersMu.Lock()
	listeners := make([]func(), len(r.listeners))
	copy(listeners, r.listeners)
	r.listenersMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// RefreshDiscovery runs discovery and merges new devices into the set.
// Devices already known keep their entry. A discovery failure leaves the
// set unchanged. The current device set is returned either way.
func (r *Registry) RefreshDiscovery(ctx context.Context) []Device {
	if r.discoverer == nil {
		return r.Devices()
	}

	found, err := r.discoverer.Discover(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Device discovery failed, keeping previous devices")
		return r.Devices()
	}

	added := r.merge(found)
	log.Info().Int("found", len(found)).Int("added", added).Msg("Device discovery finished")

	if added > 0 {
		r.notify()
	}
	return r.Devices()
}

// merge adds devices with unseen addresses and returns how many were added.
func (r *Registry) merge(found []discovery.Device) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, d := range found {
		d.Address = strings.TrimSpace(d.Address)
		if d.Address == "" || r.known[d.Address] {
			continue
		}
		r.known[d.Address] = true
		r.discovered = append(r.discovered, d)
		added++
	}
	return added
}

// RegisterManualAddress adds an address. Adding a known manual address is a no-op.
func (r *Registry) RegisterManualAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return musiccast.ErrEmptyAddress
	}

	r.mu.RLock()
	exists := slices.Contains(r.manual, address)
	r.mu.RUnlock()
	if exists {
		return nil
	}

	if r.store != nil {
		if err := r.store.AddManualAddress(address); err != nil {
			return err
		}
	}

	r.mu.Lock()
	if !slices.Contains(r.manual, address) {
		r.manual = append(r.manual, address)
	}
	r.mu.Unlock()

	log.Info().Str("address", address).Msg("Manual device added")
	r.notify()
	return nil
}

// UnregisterManualAddress removes an address. Removing an unknown address is a no-op.
// A discovered device with the same address stays known.
func (r *Registry) UnregisterManualAddress(address string) error {
	address = strings.TrimSpace(address)

	r.mu.RLock()
	exists := slices.Contains(r.manual, address)
	r.mu.RUnlock()
	if !exists {
		return nil
	}

	if r.store != nil {
		if err := r.store.RemoveManualAddress(address); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.manual = slices.DeleteFunc(r.manual, func(a string) bool { return a == address })
	r.mu.Unlock()

	log.Info().Str("address", address).Msg("Manual device removed")
	r.notify()
	return nil
}

// ManualAddresses returns the manual addresses in the order they were added.
func (r *Registry) ManualAddresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.manual))
	copy(out, r.manual)
	return out
}

// ResolvedAddresses returns the discovered addresses followed by manual-only
// addresses, without duplicates.
func (r *Registry) ResolvedAddresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.discovered)+len(r.manual))
	for _, d := range r.discovered {
		out = append(out, d.Address)
	}
	for _, a := range r.manual {
		if !r.known[a] {
			out = append(out, a)
		}
	}
	return out
}

// Devices returns every known device: discovered devices in discovery order,
// then manual-only devices. A manual-only device is named after its model
// once its identity has been fetched.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	manual := make(map[string]bool, len(r.manual))
	for _, a := range r.manual {
		manual[a] = true
	}

	devices := make([]Device, 0, len(r.discovered)+len(r.manual))
	for _, d := range r.discovered {
		devices = append(devices, Device{
			Name:       d.Name,
			Address:    d.Address,
			Discovered: true,
			Manual:     manual[d.Address],
		})
	}
	for _, a := range r.manual {
		if !r.known[a] {
			devices = append(devices, Device{Address: a, Manual: true})
		}
	}
	r.mu.RUnlock()

	for i := range devices {
		devices[i].Manageable = r.IsManageable(devices[i].Address)
		if devices[i].Name == "" && r.identities != nil {
			if res, ok := r.identities.Identity(devices[i].Address); ok && res.OK() && res.Value != nil {
				devices[i].Name = res.Value.ModelName
			}
		}
	}
	return devices
}

// Device returns the known device with the given address.
func (r *Registry) Device(address string) (Device, bool) {
	for _, d := range r.Devices() {
		if d.Address == address {
			return d, true
		}
	}
	return Device{}, false
}

// IsManageable reports whether a successful identity fetch is recorded for address.
func (r *Registry) IsManageable(address string) bool {
	if r.identities == nil {
		return false
	}
	return r.identities.IsManageable(address)
}

// ManageableDevices returns the known devices whose identity has been fetched.
func (r *Registry) ManageableDevices() []Device {
	all := r.Devices()
	out := make([]Device, 0, len(all))
	for _, d := range all {
		if d.Manageable {
			out = append(out, d)
		}
	}
	return out
}

// LoadDeviceInfo ensures the identity of every resolved address.
func (r *Registry) LoadDeviceInfo(ctx context.Context) []capability.Entry {
	if r.identities == nil {
		return nil
	}
	entries := r.identities.BulkEnsureIdentity(ctx, r.ResolvedAddresses())

	failed := 0
	for _, e := range entries {
		if !e.Result.OK() {
			failed++
		}
	}
	log.Info().Int("devices", len(entries)).Int("failed", failed).Msg("Device info loaded")

	r.notify()
	return entries
}
