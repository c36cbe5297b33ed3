package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMDNSService is the service type browsed when none is configured
	DefaultMDNSService = "_http._tcp"

	// DefaultMDNSDomain is the mDNS browse domain
	DefaultMDNSDomain = "local."

	// DefaultBrowseTimeout bounds one mDNS browse
	DefaultBrowseTimeout = 3 * time.Second
)

// browseFunc streams resolved service entries until ctx is done.
type browseFunc func(ctx context.Context, entries, removed chan *zeroconf.ServiceEntry) error

// MDNSConfig configures an MDNSDiscoverer.
type MDNSConfig struct {
	Service   string
	Domain    string
	Timeout   time.Duration
	Interface string // empty means all multicast interfaces
}

// MDNSDiscoverer finds devices advertising a service type over mDNS.
type MDNSDiscoverer struct {
	config MDNSConfig
	browse browseFunc
}

// NewMDNSDiscoverer creates an mDNS discoverer.
func NewMDNSDiscoverer(config MDNSConfig) *MDNSDiscoverer {
	if config.Service == "" {
		config.Service = DefaultMDNSService
	}
	if config.Domain == "" {
		config.Domain = DefaultMDNSDomain
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultBrowseTimeout
	}

	d := &MDNSDiscoverer{config: config}
	d.browse = func(ctx context.Context, entries, removed chan *zeroconf.ServiceEntry) error {
		return zeroconf.Browse(ctx, config.Service, config.Domain, entries, removed, d.browserOptions()...)
	}
	return d
}

// browserOptions returns zeroconf client options based on config.
func (d *MDNSDiscoverer) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if d.config.Interface != "" {
		iface, err := net.InterfaceByName(d.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			log.Warn().Err(err).Str("interface", d.config.Interface).Msg("mDNS interface not found, using all")
		}
	}
	return opts
}

// Discover browses for the configured timeout and returns every instance
// that resolved to an IPv4 address.
func (d *MDNSDiscoverer) Discover(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	errCh := make(chan error, 1)

	go func() {
		errCh <- d.browse(ctx, entries, removed)
	}()

	var devices []Device
	seen := make(map[string]bool)

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			dev, ok := entryToDevice(entry)
			if !ok || seen[dev.Address] {
				continue
			}
			seen[dev.Address] = true
			devices = append(devices, dev)

		case <-removed:
			// Interface removals do not matter for a one-shot browse.

		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("mdns browse: %w", err)
			}
			errCh = nil
			if ctx.Err() != nil {
				return devices, nil
			}

		case <-ctx.Done():
			log.Debug().Int("found", len(devices)).Str("service", d.config.Service).Msg("mDNS browse finished")
			return devices, nil
		}
	}
}

// entryToDevice converts a resolved entry to a Device.
func entryToDevice(entry *zeroconf.ServiceEntry) (Device, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return Device{}, false
	}
	return Device{
		Name:    entry.Instance,
		Address: entry.AddrIPv4[0].String(),
	}, true
}

var _ Discoverer = (*MDNSDiscoverer)(nil)
