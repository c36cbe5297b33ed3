package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-musiccast/internal/domain/browser"
	"github.com/edumarques81/stellar-musiccast/internal/domain/capability"
	"github.com/edumarques81/stellar-musiccast/internal/domain/control"
	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
	"github.com/edumarques81/stellar-musiccast/internal/infra/userdata"
)

var (
	ErrBadPayload     = errors.New("malformed payload")
	ErrMissingAddress = errors.New("address is required")
	ErrUnknownDevice  = errors.New("unknown device")
	ErrUnknownSession = errors.New("unknown browse session")
	ErrNotBrowsable   = errors.New("input has no content list")
	ErrMissingIndex   = errors.New("index is required")
)

// localErrors are rejected before any device is contacted.
var localErrors = []error{
	ErrBadPayload, ErrMissingAddress, ErrUnknownDevice, ErrUnknownSession,
	ErrNotBrowsable, ErrMissingIndex,
	control.ErrUnknownCommand, control.ErrInvalidValue,
	browser.ErrNotLoaded, browser.ErrItemNotLoaded, browser.ErrNotActionable,
	browser.ErrNotSearchPending, browser.ErrEmptySearch, browser.ErrInvalidIndex,
	userdata.ErrInvalidTheme, musiccast.ErrEmptyAddress, musiccast.ErrInvalidValue,
}

// errorCode classifies err for pushError.
func errorCode(err error) string {
	for _, target := range localErrors {
		if errors.Is(err, target) {
			return "invalid_request"
		}
	}
	return musiccast.Code(err)
}

// request is the union of every event payload field.
type request struct {
	Address string `json:"address"`
	Zone    string `json:"zone"`
	Kind    string `json:"kind"`
	Theme   string `json:"theme"`
	Input   string `json:"input"`
	Session string `json:"session"`
	Index   *int   `json:"index"`
	Text    string `json:"text"`
	Command string `json:"command"`
	Value   any    `json:"value"`
}

func decodeRequest(args []any) (request, error) {
	var req request
	if len(args) == 0 || args[0] == nil {
		return req, nil
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	req.Address = strings.TrimSpace(req.Address)
	return req, nil
}

func (r request) requireAddress() error {
	if r.Address == "" {
		return ErrMissingAddress
	}
	return nil
}

// reply is what a handler sends back to the calling client. An empty event sends nothing.
type reply struct {
	event   string
	payload any
}

type eventHandler func(s *Server, ctx context.Context, req request) (reply, error)

// Payloads.

type deviceInfoPayload struct {
	Address string                `json:"address"`
	Info    *musiccast.DeviceInfo `json:"info,omitempty"`
	Error   string                `json:"error,omitempty"`
	Code    string                `json:"code,omitempty"`
}

type featuresPayload struct {
	Address  string              `json:"address"`
	Features *musiccast.Features `json:"features,omitempty"`
	Error    string              `json:"error,omitempty"`
	Code     string              `json:"code,omitempty"`
}

type programListPayload struct {
	Address  string   `json:"address"`
	Programs []string `json:"programs"`
}

type themePayload struct {
	Theme userdata.Theme `json:"theme"`
}

type browsePayload struct {
	Session string         `json:"session"`
	Address string         `json:"address"`
	Input   string         `json:"input"`
	State   browser.State  `json:"state"`
	Action  browser.Action `json:"action,omitempty"`
	Page    *browser.Page  `json:"page"`
}

type zoneStatusPayload struct {
	Address string                `json:"address"`
	Zone    string                `json:"zone"`
	Status  *musiccast.ZoneStatus `json:"status"`
}

type playInfoPayload struct {
	Address  string              `json:"address"`
	PlayInfo *musiccast.PlayInfo `json:"playInfo"`
}

type errorPayload struct {
	Event string `json:"event"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

var handlers = map[string]eventHandler{
	"getDevices":       (*Server).handleGetDevices,
	"refreshDevices":   (*Server).handleRefreshDevices,
	"addDevice":        (*Server).handleAddDevice,
	"removeDevice":     (*Server).handleRemoveDevice,
	"getDeviceInfo":    (*Server).handleGetDeviceInfo,
	"getFeatures":      (*Server).handleGetFeatures,
	"getProgramList":   (*Server).handleGetProgramList,
	"invalidateDevice": (*Server).handleInvalidateDevice,
	"invalidateAll":    (*Server).handleInvalidateAll,
	"getTheme":         (*Server).handleGetTheme,
	"setTheme":         (*Server).handleSetTheme,
	"browseOpen":       (*Server).handleBrowseOpen,
	"browseLoad":       (*Server).handleBrowseLoad,
	"browseSelect":     (*Server).handleBrowseSelect,
	"browseSearch":     (*Server).handleBrowseSearch,
	"browseBack":       (*Server).handleBrowseBack,
	"browseClose":      (*Server).handleBrowseClose,
	"zoneCommand":      (*Server).handleZoneCommand,
	"getZoneStatus":    (*Server).handleGetZoneStatus,
	"getPlayInfo":      (*Server).handleGetPlayInfo,
}

// Events returns the names of the events clients may send.
func Events() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dispatch runs the handler for event. Unknown events yield ErrBadPayload.
func (s *Server) dispatch(ctx context.Context, event string, args []any) (reply, error) {
	h, ok := handlers[event]
	if !ok {
		return reply{}, fmt.Errorf("%w: unknown event %q", ErrBadPayload, event)
	}
	req, err := decodeRequest(args)
	if err != nil {
		return reply{}, err
	}
	return h(s, ctx, req)
}

// Devices.

func (s *Server) devicesReply() reply {
	return reply{event: "pushDevices", payload: s.registry.Devices()}
}

func (s *Server) handleGetDevices(ctx context.Context, req request) (reply, error) {
	return s.devicesReply(), nil
}

func (s *Server) handleRefreshDevices(ctx context.Context, req request) (reply, error) {
	s.registry.RefreshDiscovery(ctx)
	s.registry.LoadDeviceInfo(ctx)
	return s.devicesReply(), nil
}

func (s *Server) handleAddDevice(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	if err := s.registry.RegisterManualAddress(req.Address); err != nil {
		return reply{}, err
	}
	// A failed identity fetch is recorded; the device is listed as not manageable.
	s.cache.EnsureIdentity(ctx, req.Address)
	s.triggerDevices()
	return s.devicesReply(), nil
}

func (s *Server) handleRemoveDevice(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	if err := s.registry.UnregisterManualAddress(req.Address); err != nil {
		return reply{}, err
	}
	if _, known := s.registry.Device(req.Address); !known {
		s.browsers.CloseDevice(req.Address)
	}
	return s.devicesReply(), nil
}

func (s *Server) handleGetDeviceInfo(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	res := s.cache.EnsureIdentity(ctx, req.Address)
	if !res.Recorded {
		s.triggerDevices()
	}
	p := deviceInfoPayload{Address: req.Address, Info: res.Value, Code: res.Code}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	return reply{event: "pushDeviceInfo", payload: p}, nil
}

func (s *Server) handleGetFeatures(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	res := s.cache.EnsureManifest(ctx, req.Address)
	p := featuresPayload{Address: req.Address, Features: res.Value, Code: res.Code}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	return reply{event: "pushFeatures", payload: p}, nil
}

func (s *Server) handleGetProgramList(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	return reply{event: "pushProgramList", payload: programListPayload{
		Address:  req.Address,
		Programs: s.cache.ProgramList(ctx, req.Address),
	}}, nil
}

func (s *Server) handleInvalidateDevice(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	if req.Kind == "" {
		s.cache.InvalidateDevice(req.Address)
	} else {
		kind, err := capability.ParseKind(req.Kind)
		if err != nil {
			return reply{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		s.cache.Invalidate(req.Address, kind)
	}
	s.triggerDevices()
	return reply{}, nil
}

// handleInvalidateAll forgets every cached identity, manifest and program
// list, including recorded failures, so the next request reaches the devices.
func (s *Server) handleInvalidateAll(ctx context.Context, req request) (reply, error) {
	s.cache.InvalidateAll()
	log.Info().Msg("Capability cache cleared")
	s.triggerDevices()
	return reply{}, nil
}

// Theme.

func (s *Server) handleGetTheme(ctx context.Context, req request) (reply, error) {
	theme, err := s.settings.Theme()
	if err != nil {
		return reply{}, err
	}
	return reply{event: "pushTheme", payload: themePayload{Theme: theme}}, nil
}

func (s *Server) handleSetTheme(ctx context.Context, req request) (reply, error) {
	theme, err := userdata.ParseTheme(req.Theme)
	if err != nil {
		return reply{}, err
	}
	if err := s.settings.SetTheme(theme); err != nil {
		return reply{}, err
	}
	s.debouncer.Trigger(TopicTheme)
	return reply{event: "pushTheme", payload: themePayload{Theme: theme}}, nil
}

// Browsing.

func (s *Server) session(id string) (*browser.Session, error) {
	sess, ok := s.browsers.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return sess, nil
}

func browseReply(sess *browser.Session, action browser.Action, page *browser.Page) reply {
	return reply{event: "pushBrowse", payload: browsePayload{
		Session: sess.ID,
		Address: sess.Address,
		Input:   sess.Input,
		State:   sess.State(),
		Action:  action,
		Page:    page,
	}}
}

func (s *Server) handleBrowseOpen(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	if !browser.IsBrowsableInput(req.Input) {
		return reply{}, fmt.Errorf("%w: %q", ErrNotBrowsable, req.Input)
	}
	if _, known := s.registry.Device(req.Address); !known {
		return reply{}, fmt.Errorf("%w: %s", ErrUnknownDevice, req.Address)
	}

	sess := s.browsers.Open(req.Address, req.Input)
	start := 0
	if req.Index != nil {
		start = *req.Index
	}
	page, err := sess.LoadPage(ctx, start)
	if err != nil {
		return reply{}, err
	}
	return browseReply(sess, "", page), nil
}

func (s *Server) handleBrowseLoad(ctx context.Context, req request) (reply, error) {
	sess, err := s.session(req.Session)
	if err != nil {
		return reply{}, err
	}
	if req.Index == nil {
		return reply{}, ErrMissingIndex
	}
	page, err := sess.LoadPage(ctx, *req.Index)
	if err != nil {
		return reply{}, err
	}
	return browseReply(sess, "", page), nil
}

func (s *Server) handleBrowseSelect(ctx context.Context, req request) (reply, error) {
	sess, err := s.session(req.Session)
	if err != nil {
		return reply{}, err
	}
	if req.Index == nil {
		return reply{}, ErrMissingIndex
	}
	sel, err := sess.Select(ctx, *req.Index)
	if err != nil {
		return reply{}, err
	}
	return browseReply(sess, sel.Action, sel.Page), nil
}

func (s *Server) handleBrowseSearch(ctx context.Context, req request) (reply, error) {
	sess, err := s.session(req.Session)
	if err != nil {
		return reply{}, err
	}
	if err := sess.SubmitSearch(ctx, req.Text); err != nil {
		return reply{}, err
	}
	page, err := sess.Reload(ctx)
	if err != nil {
		return reply{}, err
	}
	return browseReply(sess, browser.ActionSearch, page), nil
}

func (s *Server) handleBrowseBack(ctx context.Context, req request) (reply, error) {
	sess, err := s.session(req.Session)
	if err != nil {
		return reply{}, err
	}
	page, err := sess.GoBack(ctx)
	if err != nil {
		return reply{}, err
	}
	return browseReply(sess, "", page), nil
}

func (s *Server) handleBrowseClose(ctx context.Context, req request) (reply, error) {
	if !s.browsers.Close(req.Session) {
		return reply{}, fmt.Errorf("%w: %q", ErrUnknownSession, req.Session)
	}
	return reply{}, nil
}

// Zone control.

func (s *Server) handleZoneCommand(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	cmd := control.Command{Name: req.Command, Zone: req.Zone, Value: req.Value}
	if err := s.control.Execute(ctx, req.Address, cmd); err != nil {
		return reply{}, err
	}
	return s.zoneStatusReply(ctx, req)
}

func (s *Server) handleGetZoneStatus(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	return s.zoneStatusReply(ctx, req)
}

func (s *Server) zoneStatusReply(ctx context.Context, req request) (reply, error) {
	zone := req.Zone
	if zone == "" {
		zone = musiccast.MainZone
	}
	st, err := s.control.ZoneStatus(ctx, req.Address, zone)
	if err != nil {
		return reply{}, err
	}
	return reply{event: "pushZoneStatus", payload: zoneStatusPayload{Address: req.Address, Zone: zone, Status: st}}, nil
}

func (s *Server) handleGetPlayInfo(ctx context.Context, req request) (reply, error) {
	if err := req.requireAddress(); err != nil {
		return reply{}, err
	}
	info, err := s.control.PlayInfo(ctx, req.Address)
	if err != nil {
		return reply{}, err
	}
	return reply{event: "pushPlayInfo", payload: playInfoPayload{Address: req.Address, PlayInfo: info}}, nil
}
