// Package browser navigates the hierarchical content lists (USB, media
// server, net radio, streaming services) exposed by MusicCast devices.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
)

const (
	// DefaultWindowSize is the number of items requested per page
	DefaultWindowSize = 8

	// MaxWindowSize is the largest window a device accepts
	MaxWindowSize = 8

	// NoPlayingIndex marks a page where nothing is playing
	NoPlayingIndex = -1
)

var (
	ErrNotLoaded        = errors.New("no page loaded")
	ErrItemNotLoaded    = errors.New("item is not on the current page")
	ErrNotActionable    = errors.New("item can not be selected or played")
	ErrNotSearchPending = errors.New("no search entry selected")
	ErrEmptySearch      = errors.New("search text is required")
	ErrInvalidIndex     = errors.New("index must not be negative")
)

// Lister is the part of the transport client a session uses.
type Lister interface {
	GetListInfo(ctx context.Context, address, input string, index, size int) (*musiccast.ListInfo, error)
	SetListControl(ctx context.Context, address, listID string, ctl musiccast.ListControl, index int, zone string) error
	SetSearchString(ctx context.Context, address, listID, text string, index int) error
}

// State is the navigation state of a session.
type State int

const (
	Idle State = iota
	Loaded
	SearchPending
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case SearchPending:
		return "search_pending"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Item is one entry of a page. Index is its position in the whole list.
type Item struct {
	Index      int        `json:"index"`
	Text       string     `json:"text"`
	Thumbnail  string     `json:"thumbnail,omitempty"`
	Subtexts   []string   `json:"subtexts,omitempty"`
	Attribute  uint32     `json:"attribute"`
	Attributes Attributes `json:"attributes"`
}

// Page is a window into a content list.
type Page struct {
	Input        string `json:"input"`
	Layer        int    `json:"layer"`
	MaxLine      int    `json:"maxLine"`
	Index        int    `json:"index"`
	WindowSize   int    `json:"windowSize"`
	PlayingIndex int    `json:"playingIndex"`
	MenuName     string `json:"menuName"`
	Items        []Item `json:"items"`
}

// Item returns the item at list position index if it is on this page.
func (p *Page) Item(index int) (Item, bool) {
	for _, it := range p.Items {
		if it.Index == index {
			return it, true
		}
	}
	return Item{}, false
}

// Action is what Select did.
type Action string

const (
	ActionSearch  Action = "search"
	ActionDescend Action = "descend"
	ActionPlay    Action = "play"
)

// Selection is the outcome of Select. Page is the page after the action.
type Selection struct {
	Action Action `json:"action"`
	Page   *Page  `json:"page"`
}

// Session browses the content list of one input of one device.
// Its methods are safe for concurrent use; calls are serialized.
type Session struct {
	ID      string
	Address string
	Input   string

	client     Lister
	zone       string
	windowSize int

	mu          sync.Mutex
	state       State
	page        *Page
	searchIndex int
}

// NewSession creates an idle session.
func NewSession(id, address, input string, client Lister, windowSize int, zone string) *Session {
	if windowSize <= 0 || windowSize > MaxWindowSize {
		windowSize = DefaultWindowSize
	}
	if zone == "" {
		zone = musiccast.MainZone
	}
	return &Session{
		ID:         id,
		Address:    address,
		Input:      input,
		client:     client,
		zone:       zone,
		windowSize: windowSize,
	}
}

// State returns the current navigation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Page returns the last loaded page, nil when idle.
func (s *Session) Page() *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// SearchIndex returns the index of the search entry awaiting text.
func (s *Session) SearchIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchIndex, s.state == SearchPending
}

// LoadPage loads the window starting at start. On failure the session keeps
// its previous state and page.
func (s *Session) LoadPage(ctx context.Context, start int) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, start)
}

// Reload reloads the window of the current page, or the first window when idle.
func (s *Session) Reload(ctx context.Context) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if s.page != nil {
		start = s.page.Index
	}
	return s.loadLocked(ctx, start)
}

func (s *Session) loadLocked(ctx context.Context, start int) (*Page, error) {
	if start < 0 {
		return nil, ErrInvalidIndex
	}

	li, err := s.client.GetListInfo(ctx, s.Address, s.Input, start, s.windowSize)
	if err != nil {
		log.Debug().Err(err).Str("address", s.Address).Str("input", s.Input).Int("index", start).Msg("List load failed")
		return nil, fmt.Errorf("load list: %w", err)
	}

	page := newPage(li, s.Input, start, s.windowSize)
	s.page = page
	s.state = Loaded

	log.Debug().
		Str("address", s.Address).
		Str("input", s.Input).
		Int("layer", page.Layer).
		Int("index", page.Index).
		Int("items", len(page.Items)).
		Int("max_line", page.MaxLine).
		Msg("List page loaded")
	return page, nil
}

// newPage normalizes a device reply into a Page bounded by the window.
func newPage(li *musiccast.ListInfo, input string, start, windowSize int) *Page {
	maxLine := li.MaxLine
	if maxLine < 0 {
		maxLine = 0
	}

	index := li.Index
	if index < 0 || (maxLine > 0 && index >= maxLine) || maxLine == 0 {
		index = min(start, max(maxLine-1, 0))
	}

	playing := li.PlayingIndex
	if playing < 0 || playing >= maxLine {
		playing = NoPlayingIndex
	}

	if li.Input != "" {
		input = li.Input
	}

	raw := li.ListInfo
	if len(raw) > windowSize {
		raw = raw[:windowSize]
	}
	items := make([]Item, 0, len(raw))
	for i, it := range raw {
		items = append(items, Item{
			Index:      index + i,
			Text:       it.Text,
			Thumbnail:  it.Thumbnail,
			Subtexts:   it.Subtexts,
			Attribute:  it.Attribute,
			Attributes: DecodeAttributes(it.Attribute),
		})
	}

	return &Page{
		Input:        input,
		Layer:        li.MenuLayer,
		MaxLine:      maxLine,
		Index:        index,
		WindowSize:   windowSize,
		PlayingIndex: playing,
		MenuName:     li.MenuName,
		Items:        items,
	}
}

// Select acts on the item at list position index of the current page.
// A search entry moves the session to SearchPending. A playable item is played
// and the page kept, even when it can also be entered. Otherwise a folder is
// entered and its first window loaded.
func (s *Session) Select(ctx context.Context, index int) (*Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil, ErrNotLoaded
	}
	item, ok := s.page.Item(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrItemNotLoaded, index)
	}

	attrs := item.Attributes
	switch {
	case attrs.Searchable:
		s.state = SearchPending
		s.searchIndex = index
		return &Selection{Action: ActionSearch, Page: s.page}, nil

	case attrs.Playable:
		if err := s.client.SetListControl(ctx, s.Address, musiccast.MainList, musiccast.ListPlay, index, s.zone); err != nil {
			return nil, fmt.Errorf("play item: %w", err)
		}
		s.state = Loaded
		return &Selection{Action: ActionPlay, Page: s.page}, nil

	case attrs.Selectable:
		if err := s.client.SetListControl(ctx, s.Address, musiccast.MainList, musiccast.ListSelect, index, s.zone); err != nil {
			return nil, fmt.Errorf("select item: %w", err)
		}
		page, err := s.loadLocked(ctx, 0)
		if err != nil {
			return nil, err
		}
		return &Selection{Action: ActionDescend, Page: page}, nil
	}

	return nil, ErrNotActionable
}

// SubmitSearch sends text for the search entry chosen by Select. On success
// the session is Loaded again and the caller should reload to see the results.
func (s *Session) SubmitSearch(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SearchPending {
		return ErrNotSearchPending
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptySearch
	}

	if err := s.client.SetSearchString(ctx, s.Address, musiccast.MainList, text, s.searchIndex); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}

	log.Debug().Str("address", s.Address).Int("index", s.searchIndex).Msg("Search submitted")
	s.state = Loaded
	return nil
}

// GoBack returns to the parent layer and loads its first window. At the root
// layer it does nothing and returns the current page. A pending search is
// abandoned without contacting the device.
func (s *Session) GoBack(ctx context.Context) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return nil, ErrNotLoaded
	}
	if s.state == SearchPending {
		s.state = Loaded
		return s.page, nil
	}
	if s.page.Layer <= 0 {
		return s.page, nil
	}

	if err := s.client.SetListControl(ctx, s.Address, musiccast.MainList, musiccast.ListReturn, -1, s.zone); err != nil {
		return nil, fmt.Errorf("return: %w", err)
	}
	return s.loadLocked(ctx, 0)
}
