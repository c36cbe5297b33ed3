package musiccast

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const (
	OpGetPlayInfo      Operation = "netusb/getPlayInfo"
	OpSetPlayback      Operation = "netusb/setPlayback"
	OpSetRepeat        Operation = "netusb/setRepeat"
	OpSetShuffle       Operation = "netusb/setShuffle"
	OpToggleRepeat     Operation = "netusb/toggleRepeat"
	OpToggleShuffle    Operation = "netusb/toggleShuffle"
	OpGetListInfo      Operation = "netusb/getListInfo"
	OpSetListControl   Operation = "netusb/setListControl"
	OpSetSearchString  Operation = "netusb/setSearchString"
	OpGetRecentInfo    Operation = "netusb/getRecentInfo"
	OpRecallRecentItem Operation = "netusb/recallRecentItem"
	OpSetPlayPosition  Operation = "netusb/setPlayPosition"
)

// GetPlayInfo fetches the network/USB playback state.
func (c *Client) GetPlayInfo(ctx context.Context, address string) (*PlayInfo, error) {
	var pi PlayInfo
	if err := c.Call(ctx, address, OpGetPlayInfo, nil, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

// SetPlayback sends a transport command.
func (c *Client) SetPlayback(ctx context.Context, address string, p Playback) error {
	if !p.Valid() {
		return fmt.Errorf("%w: playback command %q", ErrInvalidValue, p)
	}
	return c.Call(ctx, address, OpSetPlayback, url.Values{"playback": {string(p)}}, nil)
}

// SetRepeat sets the repeat mode.
func (c *Client) SetRepeat(ctx context.Context, address string, mode RepeatMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: repeat mode %q", ErrInvalidValue, mode)
	}
	return c.Call(ctx, address, OpSetRepeat, url.Values{"mode": {string(mode)}}, nil)
}

// SetShuffle sets the shuffle mode.
func (c *Client) SetShuffle(ctx context.Context, address string, mode ShuffleMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: shuffle mode %q", ErrInvalidValue, mode)
	}
	return c.Call(ctx, address, OpSetShuffle, url.Values{"mode": {string(mode)}}, nil)
}

// ToggleRepeat cycles the repeat mode.
func (c *Client) ToggleRepeat(ctx context.Context, address string) error {
	return c.Call(ctx, address, OpToggleRepeat, nil, nil)
}

// ToggleShuffle cycles the shuffle mode.
func (c *Client) ToggleShuffle(ctx context.Context, address string) error {
	return c.Call(ctx, address, OpToggleShuffle, nil, nil)
}

// GetListInfo fetches a window of the content list of an input.
func (c *Client) GetListInfo(ctx context.Context, address, input string, index, size int) (*ListInfo, error) {
	params := url.Values{
		"input": {input},
		"index": {strconv.Itoa(index)},
		"size":  {strconv.Itoa(size)},
		"lang":  {c.language},
	}

	var li ListInfo
	if err := c.Call(ctx, address, OpGetListInfo, params, &li); err != nil {
		return nil, err
	}
	return &li, nil
}

// SetListControl sends a list action. index < 0 omits the index, zone "" omits the zone.
func (c *Client) SetListControl(ctx context.Context, address, listID string, ctl ListControl, index int, zone string) error {
	if !ctl.Valid() {
		return fmt.Errorf("%w: list control %q", ErrInvalidValue, ctl)
	}
	if listID == "" {
		listID = MainList
	}

	params := url.Values{
		"list_id": {listID},
		"type":    {string(ctl)},
	}
	if index >= 0 {
		params.Set("index", strconv.Itoa(index))
	}
	if zone != "" {
		params.Set("zone", zone)
	}
	return c.Call(ctx, address, OpSetListControl, params, nil)
}

type searchRequest struct {
	ListID string `json:"list_id"`
	String string `json:"string"`
	Index  *int   `json:"index,omitempty"`
}

// SetSearchString submits a search string for the search entry at index.
// index < 0 omits the index.
func (c *Client) SetSearchString(ctx context.Context, address, listID, text string, index int) error {
	if listID == "" {
		listID = MainList
	}
	req := searchRequest{ListID: listID, String: text}
	if index >= 0 {
		req.Index = &index
	}
	return c.CallJSON(ctx, address, OpSetSearchString, req, nil)
}

// GetRecentInfo fetches the recently played items.
func (c *Client) GetRecentInfo(ctx context.Context, address string) (*RecentInfo, error) {
	var ri RecentInfo
	if err := c.Call(ctx, address, OpGetRecentInfo, nil, &ri); err != nil {
		return nil, err
	}
	return &ri, nil
}

// RecallRecentItem plays the recent item num (1-based) in a zone.
func (c *Client) RecallRecentItem(ctx context.Context, address, zone string, num int) error {
	if zone == "" {
		zone = MainZone
	}
	params := url.Values{"zone": {zone}, "num": {strconv.Itoa(num)}}
	return c.Call(ctx, address, OpRecallRecentItem, params, nil)
}

// SetPlayPosition seeks to position seconds.
func (c *Client) SetPlayPosition(ctx context.Context, address string, position int) error {
	return c.Call(ctx, address, OpSetPlayPosition, url.Values{"position": {strconv.Itoa(position)}}, nil)
}
