package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edumarques81/stellar-musiccast/internal/domain/browser"
	"github.com/edumarques81/stellar-musiccast/internal/domain/capability"
	"github.com/edumarques81/stellar-musiccast/internal/domain/control"
	"github.com/edumarques81/stellar-musiccast/internal/domain/registry"
	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
	"github.com/edumarques81/stellar-musiccast/internal/infra/userdata"
)

// receiver is a fake MusicCast device with a two-layer content list.
type receiver struct {
	mu       sync.Mutex
	layer    int
	requests []string
}

func newReceiver(t *testing.T) (*receiver, string) {
	t.Helper()
	rcv := &receiver{}
	server := httptest.NewServer(http.HandlerFunc(rcv.serve))
	t.Cleanup(server.Close)
	return rcv, strings.TrimPrefix(server.URL, "http://")
}

func (r *receiver) serve(w http.ResponseWriter, req *http.Request) {
	op := strings.TrimPrefix(req.URL.Path, musiccast.APIPath+"/")

	r.mu.Lock()
	defer r.mu.Unlock()

	logged := op
	if req.URL.RawQuery != "" && !strings.HasSuffix(op, "getListInfo") {
		logged += "?" + req.URL.RawQuery
	}
	r.requests = append(r.requests, logged)

	switch op {
	case "system/getDeviceInfo":
		fmt.Fprint(w, `{"response_code":0,"model_name":"RX-V6A","device_id":"AC44F2"}`)
	case "system/getFeatures":
		fmt.Fprint(w, `{"response_code":0,"zone":[{"id":"main","func_list":["power","volume"]}]}`)
	case "main/getSoundProgramList":
		fmt.Fprint(w, `{"response_code":0,"sound_program_list":["straight","2ch_stereo"]}`)
	case "main/getStatus":
		fmt.Fprint(w, `{"response_code":0,"power":"on","volume":30}`)
	case "netusb/getPlayInfo":
		fmt.Fprint(w, `{"response_code":0,"input":"server","playback":"play","track":"So What"}`)
	case "netusb/setListControl":
		switch req.URL.Query().Get("type") {
		case "select":
			r.layer++
		case "return":
			r.layer--
		}
		fmt.Fprint(w, `{"response_code":0}`)
	case "netusb/getListInfo":
		if r.layer == 0 {
			fmt.Fprint(w, `{"response_code":0,"input":"server","menu_layer":0,"max_line":3,"index":0,"playing_index":-1,"menu_name":"Media Server",
				"list_info":[{"text":"Search","attribute":8},{"text":"Albums","attribute":2},{"text":"Intro","attribute":4}]}`)
			return
		}
		fmt.Fprint(w, `{"response_code":0,"input":"server","menu_layer":1,"max_line":1,"index":0,"playing_index":-1,"menu_name":"Albums",
			"list_info":[{"text":"Kind of Blue","attribute":2}]}`)
	default:
		fmt.Fprint(w, `{"response_code":0}`)
	}
}

func (r *receiver) seen(request string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.requests {
		if got == request {
			return true
		}
	}
	return false
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// broadcasts records everything the server sends to all clients.
type broadcasts struct {
	mu     sync.Mutex
	events []string
}

func (b *broadcasts) record(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *broadcasts) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == event {
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T) (*Server, *broadcasts) {
	t.Helper()

	store := userdata.NewStore(filepath.Join(t.TempDir(), "userdata.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := musiccast.NewClient(musiccast.WithRateLimit(0), musiccast.WithTimeout(2*time.Second))
	cache := capability.New(client)
	reg, err := registry.New(nil, store, cache)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	s, err := NewServer(Deps{
		Registry: reg,
		Cache:    cache,
		Browsers: browser.NewManager(client, browser.DefaultWindowSize, ""),
		Control:  control.NewService(client),
		Settings: store,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	b := &broadcasts{}
	s.broadcast = b.record
	return s, b
}

func payload(fields map[string]any) []any {
	return []any{fields}
}

func mustDispatch(t *testing.T, s *Server, event string, args []any) reply {
	t.Helper()
	r, err := s.dispatch(context.Background(), event, args)
	if err != nil {
		t.Fatalf("%s failed: %v", event, err)
	}
	return r
}

func TestNewServer_MissingDependency(t *testing.T) {
	if _, err := NewServer(Deps{}); err == nil {
		t.Error("expected error for missing dependencies")
	}
}

func TestEvents(t *testing.T) {
	events := Events()
	if len(events) != len(handlers) {
		t.Fatalf("Events returned %d names, want %d", len(events), len(handlers))
	}
	for i := 1; i < len(events); i++ {
		if events[i-1] > events[i] {
			t.Errorf("events not sorted: %q before %q", events[i-1], events[i])
		}
	}
}

func TestDispatch_UnknownEvent(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.dispatch(context.Background(), "eject", nil)
	if !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
}

func TestDispatch_AddAndRemoveDevice(t *testing.T) {
	s, _ := newTestServer(t)
	_, addr := newReceiver(t)

	r := mustDispatch(t, s, "addDevice", payload(map[string]any{"address": " " + addr + " "}))
	if r.event != "pushDevices" {
		t.Fatalf("event = %q", r.event)
	}
	devices := r.payload.([]registry.Device)
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	d := devices[0]
	if d.Address != addr || !d.Manual || !d.Manageable || d.Name != "RX-V6A" {
		t.Errorf("device = %+v", d)
	}

	r = mustDispatch(t, s, "removeDevice", payload(map[string]any{"address": addr}))
	if devices := r.payload.([]registry.Device); len(devices) != 0 {
		t.Errorf("devices after remove = %+v", devices)
	}
}

func TestDispatch_AddUnreachableDevice(t *testing.T) {
	s, _ := newTestServer(t)

	r := mustDispatch(t, s, "addDevice", payload(map[string]any{"address": "127.0.0.1:1"}))
	devices := r.payload.([]registry.Device)
	if len(devices) != 1 || devices[0].Manageable {
		t.Errorf("unreachable device should be listed as not manageable: %+v", devices)
	}
}

func TestDispatch_MissingAddress(t *testing.T) {
	s, _ := newTestServer(t)

	for _, event := range []string{"addDevice", "removeDevice", "getDeviceInfo", "getFeatures", "getProgramList", "zoneCommand", "getPlayInfo"} {
		t.Run(event, func(t *testing.T) {
			_, err := s.dispatch(context.Background(), event, payload(map[string]any{}))
			if !errors.Is(err, ErrMissingAddress) {
				t.Errorf("err = %v, want ErrMissingAddress", err)
			}
			if code := errorCode(err); code != "invalid_request" {
				t.Errorf("code = %q", code)
			}
		})
	}
}

func TestDispatch_Capabilities(t *testing.T) {
	s, _ := newTestServer(t)
	rcv, addr := newReceiver(t)
	args := payload(map[string]any{"address": addr})

	info := mustDispatch(t, s, "getDeviceInfo", args).payload.(deviceInfoPayload)
	if info.Info == nil || info.Info.ModelName != "RX-V6A" || info.Code != "" {
		t.Errorf("device info = %+v", info)
	}

	features := mustDispatch(t, s, "getFeatures", args).payload.(featuresPayload)
	if features.Features == nil || len(features.Features.Zone) != 1 {
		t.Errorf("features = %+v", features)
	}

	programs := mustDispatch(t, s, "getProgramList", args).payload.(programListPayload)
	if len(programs.Programs) != 2 || programs.Programs[0] != "straight" {
		t.Errorf("programs = %+v", programs)
	}

	// Cached: asking again does not reach the device.
	before := rcv.count()
	mustDispatch(t, s, "getDeviceInfo", args)
	mustDispatch(t, s, "getProgramList", args)
	if rcv.count() != before {
		t.Errorf("cached capabilities were fetched again")
	}

	r := mustDispatch(t, s, "invalidateDevice", payload(map[string]any{"address": addr, "kind": "identity"}))
	if r.event != "" {
		t.Errorf("invalidateDevice replied %q", r.event)
	}
	mustDispatch(t, s, "getDeviceInfo", args)
	if rcv.count() != before+1 {
		t.Errorf("device calls = %d, want %d after invalidate", rcv.count(), before+1)
	}

	if _, err := s.dispatch(context.Background(), "invalidateDevice", payload(map[string]any{"address": addr, "kind": "firmware"})); !errors.Is(err, ErrBadPayload) {
		t.Errorf("unknown kind err = %v", err)
	}
}

func TestDispatch_InvalidateAll(t *testing.T) {
	s, b := newTestServer(t)
	living, livingAddr := newReceiver(t)
	study, studyAddr := newReceiver(t)

	for _, addr := range []string{livingAddr, studyAddr} {
		args := payload(map[string]any{"address": addr})
		mustDispatch(t, s, "getDeviceInfo", args)
		mustDispatch(t, s, "getFeatures", args)
	}
	livingBefore, studyBefore := living.count(), study.count()

	r := mustDispatch(t, s, "invalidateAll", nil)
	if r.event != "" {
		t.Errorf("invalidateAll replied %q", r.event)
	}
	for _, addr := range []string{livingAddr, studyAddr} {
		if st := s.cache.Status(addr, capability.KindIdentity); st != capability.NotFetched {
			t.Errorf("%s identity status = %v after invalidateAll", addr, st)
		}
	}

	for _, addr := range []string{livingAddr, studyAddr} {
		args := payload(map[string]any{"address": addr})
		mustDispatch(t, s, "getDeviceInfo", args)
		mustDispatch(t, s, "getFeatures", args)
	}
	if living.count() != livingBefore+2 || study.count() != studyBefore+2 {
		t.Errorf("device calls after invalidateAll: living %d, study %d; want %d, %d",
			living.count(), study.count(), livingBefore+2, studyBefore+2)
	}

	time.Sleep(2 * broadcastWindow)
	if b.count("pushDevices") == 0 {
		t.Error("invalidateAll did not broadcast devices")
	}
}

func TestDispatch_DeviceInfoFailureIsReported(t *testing.T) {
	s, _ := newTestServer(t)

	info := mustDispatch(t, s, "getDeviceInfo", payload(map[string]any{"address": "127.0.0.1:1"})).payload.(deviceInfoPayload)
	if info.Info != nil || info.Error == "" || info.Code != "transport_error" {
		t.Errorf("device info = %+v", info)
	}
}

func TestDispatch_Theme(t *testing.T) {
	s, b := newTestServer(t)

	got := mustDispatch(t, s, "getTheme", nil).payload.(themePayload)
	if got.Theme != userdata.ThemeSystem {
		t.Errorf("default theme = %q", got.Theme)
	}

	got = mustDispatch(t, s, "setTheme", payload(map[string]any{"theme": "Dark"})).payload.(themePayload)
	if got.Theme != userdata.ThemeDark {
		t.Errorf("theme = %q", got.Theme)
	}
	got = mustDispatch(t, s, "getTheme", nil).payload.(themePayload)
	if got.Theme != userdata.ThemeDark {
		t.Errorf("stored theme = %q", got.Theme)
	}

	_, err := s.dispatch(context.Background(), "setTheme", payload(map[string]any{"theme": "neon"}))
	if !errors.Is(err, userdata.ErrInvalidTheme) || errorCode(err) != "invalid_request" {
		t.Errorf("err = %v", err)
	}

	time.Sleep(2 * broadcastWindow)
	if n := b.count("pushTheme"); n != 1 {
		t.Errorf("pushTheme broadcasts = %d, want 1", n)
	}
}

func TestDispatch_BrowseFlow(t *testing.T) {
	s, _ := newTestServer(t)
	rcv, addr := newReceiver(t)
	mustDispatch(t, s, "addDevice", payload(map[string]any{"address": addr}))

	view := mustDispatch(t, s, "browseOpen", payload(map[string]any{"address": addr, "input": "server"})).payload.(browsePayload)
	if view.State != browser.Loaded || view.Page == nil || len(view.Page.Items) != 3 {
		t.Fatalf("open = %+v", view)
	}
	id := view.Session

	// Folder.
	view = mustDispatch(t, s, "browseSelect", payload(map[string]any{"session": id, "index": float64(1)})).payload.(browsePayload)
	if view.Action != browser.ActionDescend || view.Page.Layer != 1 || view.Page.MenuName != "Albums" {
		t.Errorf("descend = %+v", view)
	}
	if !rcv.seen("netusb/setListControl?index=1&list_id=main&type=select&zone=main") {
		t.Error("select request not sent with zone")
	}

	view = mustDispatch(t, s, "browseBack", payload(map[string]any{"session": id})).payload.(browsePayload)
	if view.Page.Layer != 0 {
		t.Errorf("back layer = %d", view.Page.Layer)
	}
	if !rcv.seen("netusb/setListControl?list_id=main&type=return&zone=main") {
		t.Error("return request not sent with zone")
	}

	// Search entry.
	view = mustDispatch(t, s, "browseSelect", payload(map[string]any{"session": id, "index": float64(0)})).payload.(browsePayload)
	if view.Action != browser.ActionSearch || view.State != browser.SearchPending {
		t.Errorf("search select = %+v", view)
	}
	view = mustDispatch(t, s, "browseSearch", payload(map[string]any{"session": id, "text": "miles"})).payload.(browsePayload)
	if view.State != browser.Loaded {
		t.Errorf("state after search = %v", view.State)
	}
	if !rcv.seen("netusb/setSearchString") {
		t.Error("search string was not sent")
	}

	// Playable track.
	view = mustDispatch(t, s, "browseSelect", payload(map[string]any{"session": id, "index": float64(2)})).payload.(browsePayload)
	if view.Action != browser.ActionPlay {
		t.Errorf("play = %+v", view)
	}
	if !rcv.seen("netusb/setListControl?index=2&list_id=main&type=play&zone=main") {
		t.Error("play request not sent")
	}

	if _, err := s.dispatch(context.Background(), "browseLoad", payload(map[string]any{"session": id})); !errors.Is(err, ErrMissingIndex) {
		t.Errorf("load without index err = %v", err)
	}

	r := mustDispatch(t, s, "browseClose", payload(map[string]any{"session": id}))
	if r.event != "" {
		t.Errorf("browseClose replied %q", r.event)
	}
	if _, err := s.dispatch(context.Background(), "browseLoad", payload(map[string]any{"session": id, "index": float64(0)})); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("load after close err = %v", err)
	}
}

func TestDispatch_BrowseOpenRejected(t *testing.T) {
	s, _ := newTestServer(t)
	rcv, addr := newReceiver(t)

	_, err := s.dispatch(context.Background(), "browseOpen", payload(map[string]any{"address": addr, "input": "server"}))
	if !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("unknown device err = %v", err)
	}

	mustDispatch(t, s, "addDevice", payload(map[string]any{"address": addr}))
	before := rcv.count()
	_, err = s.dispatch(context.Background(), "browseOpen", payload(map[string]any{"address": addr, "input": "tuner"}))
	if !errors.Is(err, ErrNotBrowsable) {
		t.Errorf("tuner err = %v", err)
	}
	if rcv.count() != before {
		t.Error("rejected browse reached the device")
	}
}

func TestDispatch_ZoneCommand(t *testing.T) {
	s, _ := newTestServer(t)
	rcv, addr := newReceiver(t)

	r := mustDispatch(t, s, "zoneCommand", payload(map[string]any{"address": addr, "command": "volume", "value": float64(30)}))
	if r.event != "pushZoneStatus" {
		t.Fatalf("event = %q", r.event)
	}
	st := r.payload.(zoneStatusPayload)
	if st.Zone != musiccast.MainZone || st.Status == nil || st.Status.Volume != 30 {
		t.Errorf("status = %+v", st)
	}
	if !rcv.seen("main/setVolume?volume=30") {
		t.Error("setVolume not sent")
	}

	before := rcv.count()
	_, err := s.dispatch(context.Background(), "zoneCommand", payload(map[string]any{"address": addr, "command": "eject"}))
	if !errors.Is(err, control.ErrUnknownCommand) || errorCode(err) != "invalid_request" {
		t.Errorf("err = %v", err)
	}
	if rcv.count() != before {
		t.Error("unknown command reached the device")
	}
}

func TestDispatch_PlayInfo(t *testing.T) {
	s, _ := newTestServer(t)
	_, addr := newReceiver(t)

	p := mustDispatch(t, s, "getPlayInfo", payload(map[string]any{"address": addr})).payload.(playInfoPayload)
	if p.PlayInfo == nil || p.PlayInfo.Playback != "play" {
		t.Errorf("play info = %+v", p)
	}
}

func TestRegistryChangesAreBroadcastOnce(t *testing.T) {
	s, b := newTestServer(t)

	for i := 0; i < 5; i++ {
		if err := s.registry.RegisterManualAddress(fmt.Sprintf("192.168.1.%d", 10+i)); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(2 * broadcastWindow)

	if n := b.count("pushDevices"); n != 1 {
		t.Errorf("pushDevices broadcasts = %d, want 1", n)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"local", fmt.Errorf("wrap: %w", browser.ErrNotSearchPending), "invalid_request"},
		{"invalid enum", musiccast.ErrInvalidValue, "invalid_request"},
		{"device code", &musiccast.StatusError{Code: musiccast.CodeGuarded}, "5"},
		{"rate limited", musiccast.ErrRateLimited, "rate_limited"},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"other", errors.New("boom"), "transport_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorCode(tt.err); got != tt.want {
				t.Errorf("errorCode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	req, err := decodeRequest([]any{map[string]any{"address": " 10.0.0.5 ", "index": float64(4), "value": true}})
	if err != nil {
		t.Fatal(err)
	}
	if req.Address != "10.0.0.5" || req.Index == nil || *req.Index != 4 || req.Value != true {
		t.Errorf("req = %+v", req)
	}

	if _, err := decodeRequest([]any{map[string]any{"index": "four"}}); !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}

	req, err = decodeRequest(nil)
	if err != nil || req.Address != "" {
		t.Errorf("empty args: %+v, %v", req, err)
	}
}

func TestBrowsePayloadJSON(t *testing.T) {
	data, err := json.Marshal(browsePayload{Session: "s1", State: browser.SearchPending})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"state":"search_pending"`) {
		t.Errorf("json = %s", data)
	}
}
