package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/koron/go-ssdp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// MediaRendererType is the SSDP search target answered by MusicCast devices
	MediaRendererType = "urn:schemas-upnp-org:device:MediaRenderer:1"

	// DefaultSearchWait is how long an M-SEARCH waits for answers
	DefaultSearchWait = 3 * time.Second

	// descriptionLimit caps the size of a fetched device description
	descriptionLimit = 1 << 20
)

// searchFunc performs an SSDP M-SEARCH and returns the answering services.
type searchFunc func(searchType string, waitSec int, localAddr string) ([]ssdp.Service, error)

// SSDPDiscoverer finds MusicCast devices with an SSDP search followed by a
// fetch of each answering device description.
type SSDPDiscoverer struct {
	searchType string
	wait       time.Duration
	localAddr  string
	httpClient *http.Client
	search     searchFunc
}

// SSDPOption configures an SSDPDiscoverer.
type SSDPOption func(*SSDPDiscoverer)

// WithSearchWait sets how long the M-SEARCH collects answers.
func WithSearchWait(d time.Duration) SSDPOption {
	return func(s *SSDPDiscoverer) {
		s.wait = d
	}
}

// WithLocalAddr binds the search to a local address (e.g. "192.168.1.10:0").
func WithLocalAddr(addr string) SSDPOption {
	return func(s *SSDPDiscoverer) {
		s.localAddr = addr
	}
}

// WithDescriptionClient sets the HTTP client used to fetch device descriptions.
func WithDescriptionClient(c *http.Client) SSDPOption {
	return func(s *SSDPDiscoverer) {
		s.httpClient = c
	}
}

// NewSSDPDiscoverer creates an SSDP discoverer.
func NewSSDPDiscoverer(opts ...SSDPOption) *SSDPDiscoverer {
	s := &SSDPDiscoverer{
		searchType: MediaRendererType,
		wait:       DefaultSearchWait,
		httpClient: &http.Client{Timeout: 3 * time.Second},
		search:     ssdp.Search,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover implements Discoverer.
func (s *SSDPDiscoverer) Discover(ctx context.Context) ([]Device, error) {
	services, err := s.runSearch(ctx)
	if err != nil {
		return nil, err
	}

	locations := uniqueLocations(services)
	log.Debug().Int("answers", len(services)).Int("locations", len(locations)).Msg("SSDP search finished")

	results := make([]*Device, len(locations))
	var g errgroup.Group
	g.SetLimit(8)
	for i, loc := range locations {
		g.Go(func() error {
			dev, err := s.describe(ctx, loc)
			if err != nil {
				log.Debug().Err(err).Str("location", loc).Msg("Skipping SSDP answer")
				return nil
			}
			results[i] = dev
			return nil
		})
	}
	_ = g.Wait()

	devices := make([]Device, 0, len(results))
	for _, d := range results {
		if d != nil {
			devices = append(devices, *d)
		}
	}
	return devices, nil
}

func (s *SSDPDiscoverer) runSearch(ctx context.Context) ([]ssdp.Service, error) {
	waitSec := int(s.wait / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}

	type result struct {
		services []ssdp.Service
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		services, err := s.search(s.searchType, waitSec, s.localAddr)
		ch <- result{services, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("ssdp search: %w", r.err)
		}
		return r.services, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// uniqueLocations returns the distinct description URLs in answer order.
func uniqueLocations(services []ssdp.Service) []string {
	seen := make(map[string]bool, len(services))
	var locs []string
	for _, svc := range services {
		if svc.Location == "" || seen[svc.Location] {
			continue
		}
		seen[svc.Location] = true
		locs = append(locs, svc.Location)
	}
	return locs
}

// deviceDescription is the subset of a UPnP description read here.
// Element names match regardless of namespace.
type deviceDescription struct {
	Device struct {
		FriendlyName string `xml:"friendlyName"`
		ModelName    string `xml:"modelName"`
	} `xml:"device"`
	Yamaha struct {
		ServiceList struct {
			Services []struct {
				SpecType   string `xml:"X_specType"`
				ControlURL string `xml:"X_yxcControlURL"`
			} `xml:"X_service"`
		} `xml:"X_serviceList"`
	} `xml:"X_device"`
}

func (d *deviceDescription) hasExtendedControl() bool {
	for _, svc := range d.Yamaha.ServiceList.Services {
		if svc.ControlURL != "" {
			return true
		}
	}
	return false
}

// describe fetches a device description and turns it into a Device.
// Descriptions without an extended control URL are not MusicCast devices.
func (s *SSDPDiscoverer) describe(ctx context.Context, location string) (*Device, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("location %q has no host", location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch description: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch description: unexpected status %d", resp.StatusCode)
	}

	var desc deviceDescription
	if err := xml.NewDecoder(io.LimitReader(resp.Body, descriptionLimit)).Decode(&desc); err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	if !desc.hasExtendedControl() {
		return nil, fmt.Errorf("not a MusicCast device")
	}

	name := desc.Device.FriendlyName
	if name == "" {
		name = desc.Device.ModelName
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	return &Device{Name: name, Address: host}, nil
}

var _ Discoverer = (*SSDPDiscoverer)(nil)

// InterfaceLocalAddr returns "ip:0" for the first IPv4 address of the named
// interface, suitable for WithLocalAddr.
func InterfaceLocalAddr(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return net.JoinHostPort(ipnet.IP.String(), "0"), nil
		}
	}
	return "", fmt.Errorf("interface %s has no IPv4 address", name)
}
