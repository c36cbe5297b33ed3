package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
)

func TestDecodeAttributes(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want Attributes
	}{
		{"zero", 0, Attributes{}},
		{"truncated", 1 << 0, Attributes{NameTruncated: true}},
		{"selectable", 1 << 1, Attributes{Selectable: true}},
		{"playable", 1 << 2, Attributes{Playable: true}},
		{"searchable", 1 << 3, Attributes{Searchable: true}},
		{"artwork", 1 << 4, Attributes{HasArtwork: true}},
		{"0b00010111", 0b00010111, Attributes{NameTruncated: true, Selectable: true, Playable: true, HasArtwork: true}},
		{"all known bits", 0b11111, Attributes{true, true, true, true, true}},
		{"unknown high bits", 0xFFFFFFE0, Attributes{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeAttributes(tt.raw); got != tt.want {
				t.Errorf("DecodeAttributes(%#x) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeAttributes_SingleBits(t *testing.T) {
	for bit := 0; bit < 32; bit++ {
		got := DecodeAttributes(1 << bit)
		set := 0
		for _, b := range []bool{got.NameTruncated, got.Selectable, got.Playable, got.Searchable, got.HasArtwork} {
			if b {
				set++
			}
		}

		want := 0
		if bit <= 4 {
			want = 1
		}
		if set != want {
			t.Errorf("bit %d: %d flags set, want %d (%+v)", bit, set, want, got)
		}
	}
}

// fakeDevice is an in-memory content tree. Each layer is a list of items;
// selecting a folder pushes its children, return pops.
type fakeDevice struct {
	root     []musiccast.ListItem
	children map[string][]musiccast.ListItem

	stack    [][]musiccast.ListItem
	names    []string
	playing  int
	controls []string
	searches []string

	failLoad    bool
	failControl bool
}

const (
	attrFolder = AttrSelectable
	attrSong   = AttrPlayable | AttrArtwork
	attrSearch = AttrSearchable
)

func newFakeDevice() *fakeDevice {
	folder := make([]musiccast.ListItem, 5)
	for i := range folder {
		folder[i] = musiccast.ListItem{Text: fmt.Sprintf("Track %d", i+1), Attribute: attrSong}
	}

	root := []musiccast.ListItem{
		{Text: "Search", Attribute: attrSearch},
		{Text: "Albums", Attribute: attrFolder},
		{Text: "Radio One", Attribute: attrSong},
		{Text: "Info", Attribute: 0},
	}
	for i := 0; i < 8; i++ {
		root = append(root, musiccast.ListItem{Text: fmt.Sprintf("Extra %d", i), Attribute: attrFolder})
	}

	d := &fakeDevice{
		root:     root,
		children: map[string][]musiccast.ListItem{"Albums": folder},
		playing:  -1,
	}
	d.stack = [][]musiccast.ListItem{root}
	d.names = []string{"USB"}
	return d
}

func (d *fakeDevice) current() []musiccast.ListItem {
	return d.stack[len(d.stack)-1]
}

func (d *fakeDevice) GetListInfo(ctx context.Context, address, input string, index, size int) (*musiccast.ListInfo, error) {
	if d.failLoad {
		return nil, &musiccast.StatusError{Op: musiccast.OpGetListInfo, Code: musiccast.CodeInternalError}
	}
	items := d.current()
	end := min(index+size, len(items))
	var window []musiccast.ListItem
	if index < len(items) {
		window = items[index:end]
	}
	return &musiccast.ListInfo{
		Input:        input,
		MenuLayer:    len(d.stack) - 1,
		MaxLine:      len(items),
		Index:        index,
		PlayingIndex: d.playing,
		MenuName:     d.names[len(d.names)-1],
		ListInfo:     window,
	}, nil
}

func (d *fakeDevice) SetListControl(ctx context.Context, address, listID string, ctl musiccast.ListControl, index int, zone string) error {
	if d.failControl {
		return errors.New("device busy")
	}
	d.controls = append(d.controls, fmt.Sprintf("%s:%d:%s", ctl, index, zone))
	switch ctl {
	case musiccast.ListSelect:
		name := d.current()[index].Text
		d.stack = append(d.stack, d.children[name])
		d.names = append(d.names, name)
	case musiccast.ListReturn:
		if len(d.stack) > 1 {
			d.stack = d.stack[:len(d.stack)-1]
			d.names = d.names[:len(d.names)-1]
		}
	case musiccast.ListPlay:
		d.playing = index
	}
	return nil
}

func (d *fakeDevice) SetSearchString(ctx context.Context, address, listID, text string, index int) error {
	d.searches = append(d.searches, fmt.Sprintf("%s@%d", text, index))
	return nil
}

func newTestSession(d *fakeDevice) *Session {
	return NewSession("s1", "10.0.0.1", "usb", d, DefaultWindowSize, "")
}

func TestLoadPage_ShortList(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)
	ctx := context.Background()

	if _, err := s.LoadPage(ctx, 0); err != nil {
		t.Fatal(err)
	}
	sel, err := s.Select(ctx, 1) // Albums: 5 tracks
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	page := sel.Page
	if len(page.Items) != 5 || page.MaxLine != 5 {
		t.Errorf("got %d items, max_line %d; want 5, 5", len(page.Items), page.MaxLine)
	}
	if page.Index != 0 || page.PlayingIndex != NoPlayingIndex {
		t.Errorf("index %d playing %d", page.Index, page.PlayingIndex)
	}
	for i, it := range page.Items {
		if it.Index != i {
			t.Errorf("item %d has index %d", i, it.Index)
		}
	}
}

func TestLoadPage_WindowBounds(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)

	first, err := s.LoadPage(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Items) != DefaultWindowSize || first.MaxLine != 12 {
		t.Errorf("first page: %d items, max_line %d", len(first.Items), first.MaxLine)
	}

	last, err := s.LoadPage(context.Background(), 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(last.Items) != 4 || last.Index != 8 || last.Items[0].Index != 8 {
		t.Errorf("last page: %d items, index %d", len(last.Items), last.Index)
	}

	if _, err := s.LoadPage(context.Background(), -1); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}
}

func TestNewPage_TrimsOversizedReply(t *testing.T) {
	li := &musiccast.ListInfo{MaxLine: 20, Index: 0, PlayingIndex: 99, ListInfo: make([]musiccast.ListItem, 12)}

	page := newPage(li, "usb", 0, 8)

	if len(page.Items) != 8 {
		t.Errorf("got %d items, want 8", len(page.Items))
	}
	if page.PlayingIndex != NoPlayingIndex {
		t.Errorf("out of range playing index should become NoPlayingIndex, got %d", page.PlayingIndex)
	}
}

func TestNewPage_EmptyList(t *testing.T) {
	page := newPage(&musiccast.ListInfo{MaxLine: 0, Index: 3, PlayingIndex: -1}, "server", 3, 8)

	if len(page.Items) != 0 || page.Index != 0 || page.MaxLine != 0 {
		t.Errorf("empty page = %+v", page)
	}
}

func TestLoadPage_FailureKeepsState(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)

	if _, err := s.LoadPage(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	before := s.Page()

	d.failLoad = true
	_, err := s.LoadPage(context.Background(), 8)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var se *musiccast.StatusError
	if !errors.As(err, &se) {
		t.Errorf("error should wrap the status error, got %v", err)
	}
	if s.State() != Loaded || s.Page() != before {
		t.Error("failed load must keep the previous page")
	}

	fresh := newTestSession(d)
	fresh.LoadPage(context.Background(), 0)
	if fresh.State() != Idle || fresh.Page() != nil {
		t.Error("failed first load must stay idle")
	}
}

func TestSelect_Transitions(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)
	ctx := context.Background()

	if _, err := s.Select(ctx, 0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("select while idle: expected ErrNotLoaded, got %v", err)
	}

	s.LoadPage(ctx, 0)

	// Playable: play and stay on the layer.
	sel, err := s.Select(ctx, 2)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if sel.Action != ActionPlay || sel.Page.Layer != 0 {
		t.Errorf("play selection = %+v", sel)
	}
	if d.controls[len(d.controls)-1] != "play:2:main" {
		t.Errorf("control = %s", d.controls[len(d.controls)-1])
	}

	// Not actionable.
	if _, err := s.Select(ctx, 3); !errors.Is(err, ErrNotActionable) {
		t.Errorf("expected ErrNotActionable, got %v", err)
	}

	// Not on the page.
	if _, err := s.Select(ctx, 10); !errors.Is(err, ErrItemNotLoaded) {
		t.Errorf("expected ErrItemNotLoaded, got %v", err)
	}

	// Selectable: descend and reload at 0.
	sel, err = s.Select(ctx, 1)
	if err != nil {
		t.Fatalf("descend failed: %v", err)
	}
	if sel.Action != ActionDescend || sel.Page.Layer != 1 || sel.Page.MenuName != "Albums" || sel.Page.Index != 0 {
		t.Errorf("descend selection = %+v", sel.Page)
	}
	if d.controls[len(d.controls)-1] != "select:1:main" {
		t.Errorf("control = %s", d.controls[len(d.controls)-1])
	}
}

func TestSelect_PlayableFolderPlays(t *testing.T) {
	d := newFakeDevice()
	d.root[1].Attribute = AttrSelectable | AttrPlayable
	s := newTestSession(d)
	ctx := context.Background()
	s.LoadPage(ctx, 0)

	sel, err := s.Select(ctx, 1)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if sel.Action != ActionPlay || sel.Page.Layer != 0 {
		t.Errorf("selection = %+v, want play on layer 0", sel)
	}
	if got := d.controls[len(d.controls)-1]; got != "play:1:main" {
		t.Errorf("control = %s, want play:1:main", got)
	}
	if len(d.stack) != 1 {
		t.Errorf("device descended to layer %d", len(d.stack)-1)
	}
}

func TestSelect_ControlFailureKeepsState(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)
	s.LoadPage(context.Background(), 0)
	before := s.Page()

	d.failControl = true
	if _, err := s.Select(context.Background(), 1); err == nil {
		t.Fatal("expected error, got nil")
	}
	if s.Page() != before || s.State() != Loaded {
		t.Error("failed select must keep the current page")
	}
}

func TestSearchFlow(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)
	ctx := context.Background()

	if err := s.SubmitSearch(ctx, "jazz"); !errors.Is(err, ErrNotSearchPending) {
		t.Errorf("expected ErrNotSearchPending, got %v", err)
	}

	s.LoadPage(ctx, 0)
	sel, err := s.Select(ctx, 0)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Action != ActionSearch || s.State() != SearchPending {
		t.Fatalf("expected search pending, got %v / %v", sel.Action, s.State())
	}
	if idx, ok := s.SearchIndex(); !ok || idx != 0 {
		t.Errorf("SearchIndex = %d, %v", idx, ok)
	}
	if len(d.controls) != 0 {
		t.Errorf("selecting a search entry must not contact the device, got %v", d.controls)
	}

	if err := s.SubmitSearch(ctx, "   "); !errors.Is(err, ErrEmptySearch) {
		t.Errorf("expected ErrEmptySearch, got %v", err)
	}
	if s.State() != SearchPending {
		t.Error("rejected search must keep the session pending")
	}

	if err := s.SubmitSearch(ctx, "jazz"); err != nil {
		t.Fatalf("SubmitSearch failed: %v", err)
	}
	if s.State() != Loaded {
		t.Errorf("state = %v, want loaded", s.State())
	}
	if len(d.searches) != 1 || d.searches[0] != "jazz@0" {
		t.Errorf("searches = %v", d.searches)
	}
}

func TestGoBack(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)
	ctx := context.Background()

	if _, err := s.GoBack(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}

	root, _ := s.LoadPage(ctx, 0)

	// Idempotent at the root.
	first, err := s.GoBack(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.GoBack(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != root || second != root {
		t.Error("GoBack at root should return the current page")
	}
	if len(d.controls) != 0 {
		t.Errorf("GoBack at root must not contact the device, got %v", d.controls)
	}

	s.Select(ctx, 1)
	back, err := s.GoBack(ctx)
	if err != nil {
		t.Fatalf("GoBack failed: %v", err)
	}
	if back.Layer != 0 || back.MenuName != "USB" {
		t.Errorf("back page = %+v", back)
	}
	if d.controls[len(d.controls)-1] != "return:-1:main" {
		t.Errorf("control = %s", d.controls[len(d.controls)-1])
	}
}

func TestGoBack_AbandonsSearch(t *testing.T) {
	d := newFakeDevice()
	s := newTestSession(d)
	ctx := context.Background()

	page, _ := s.LoadPage(ctx, 0)
	s.Select(ctx, 0)

	got, err := s.GoBack(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != page || s.State() != Loaded {
		t.Error("GoBack should abandon the pending search")
	}
}

func TestManager(t *testing.T) {
	m := NewManager(newFakeDevice(), 0, "")

	a := m.Open("10.0.0.1", "usb")
	b := m.Open("10.0.0.1", "usb")
	c := m.Open("10.0.0.1", "server")
	d := m.Open("10.0.0.2", "usb")

	if a != b {
		t.Error("same device and input should share a session")
	}
	if a.ID == c.ID || a.ID == d.ID {
		t.Error("sessions should have distinct ids")
	}
	if got, ok := m.Get(c.ID); !ok || got != c {
		t.Error("Get should find the session")
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}

	if !m.Close(a.ID) || m.Close(a.ID) {
		t.Error("Close should report whether the session existed")
	}
	if m.Open("10.0.0.1", "usb") == a {
		t.Error("reopening after close should create a new session")
	}

	if n := m.CloseDevice("10.0.0.1"); n != 2 {
		t.Errorf("CloseDevice closed %d sessions, want 2", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestIsBrowsableInput(t *testing.T) {
	for _, in := range []string{"server", "net_radio", "usb", "tidal", "deezer", "qobuz"} {
		if !IsBrowsableInput(in) {
			t.Errorf("%s should be browsable", in)
		}
	}
	for _, in := range []string{"hdmi1", "tuner", "bluetooth", ""} {
		if IsBrowsableInput(in) {
			t.Errorf("%s should not be browsable", in)
		}
	}
}
