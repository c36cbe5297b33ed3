package musiccast

import (
	"context"
	"net/url"
	"strconv"
)

// ZoneOp builds the operation name of a zone-scoped call, e.g. "main/getStatus".
func ZoneOp(zone, name string) Operation {
	if zone == "" {
		zone = MainZone
	}
	return Operation(zone + "/" + name)
}

// GetZoneStatus fetches the status of a zone.
func (c *Client) GetZoneStatus(ctx context.Context, address, zone string) (*ZoneStatus, error) {
	var st ZoneStatus
	if err := c.Call(ctx, address, ZoneOp(zone, "getStatus"), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetSignalInfo fetches the input signal information of a zone.
func (c *Client) GetSignalInfo(ctx context.Context, address, zone string) (*SignalInfo, error) {
	var si SignalInfo
	if err := c.Call(ctx, address, ZoneOp(zone, "getSignalInfo"), nil, &si); err != nil {
		return nil, err
	}
	return &si, nil
}

// GetSoundProgramList fetches the sound programs available in a zone.
func (c *Client) GetSoundProgramList(ctx context.Context, address, zone string) (*ZoneProgramList, error) {
	var pl ZoneProgramList
	if err := c.Call(ctx, address, ZoneOp(zone, "getSoundProgramList"), nil, &pl); err != nil {
		return nil, err
	}
	return &pl, nil
}

// TogglePower toggles the power state of a zone.
func (c *Client) TogglePower(ctx context.Context, address, zone string) error {
	return c.Call(ctx, address, ZoneOp(zone, "setPower"), url.Values{"power": {"toggle"}}, nil)
}

// SetPower sets the power state of a zone ("on" or "standby").
func (c *Client) SetPower(ctx context.Context, address, zone, power string) error {
	return c.Call(ctx, address, ZoneOp(zone, "setPower"), url.Values{"power": {power}}, nil)
}

// StepVolume moves the zone volume one step up or down.
func (c *Client) StepVolume(ctx context.Context, address, zone string, dir VolumeStep) error {
	return c.Call(ctx, address, ZoneOp(zone, "setVolume"), url.Values{"volume": {string(dir)}}, nil)
}

// SetVolume sets the absolute zone volume.
func (c *Client) SetVolume(ctx context.Context, address, zone string, volume int) error {
	return c.zoneInt(ctx, address, zone, "setVolume", "volume", volume)
}

// SetMute mutes or unmutes a zone.
func (c *Client) SetMute(ctx context.Context, address, zone string, enabled bool) error {
	return c.zoneBool(ctx, address, zone, "setMute", enabled)
}

// SetSoundProgram selects a sound program.
func (c *Client) SetSoundProgram(ctx context.Context, address, zone, program string) error {
	return c.Call(ctx, address, ZoneOp(zone, "setSoundProgram"), url.Values{"program": {program}}, nil)
}

// SetInput selects the input source of a zone.
func (c *Client) SetInput(ctx context.Context, address, zone, input string) error {
	return c.Call(ctx, address, ZoneOp(zone, "setInput"), url.Values{"input": {input}}, nil)
}

// SetEnhancer toggles the compressed music enhancer.
func (c *Client) SetEnhancer(ctx context.Context, address, zone string, enabled bool) error {
	return c.zoneBool(ctx, address, zone, "setEnhancer", enabled)
}

// SetExtraBass toggles extra bass.
func (c *Client) SetExtraBass(ctx context.Context, address, zone string, enabled bool) error {
	return c.zoneBool(ctx, address, zone, "setExtraBass", enabled)
}

// SetPureDirect toggles pure direct.
func (c *Client) SetPureDirect(ctx context.Context, address, zone string, enabled bool) error {
	return c.zoneBool(ctx, address, zone, "setPureDirect", enabled)
}

// SetDirect toggles direct mode.
func (c *Client) SetDirect(ctx context.Context, address, zone string, enabled bool) error {
	return c.zoneBool(ctx, address, zone, "setDirect", enabled)
}

// Set3DSurround toggles 3D surround.
func (c *Client) Set3DSurround(ctx context.Context, address, zone string, enabled bool) error {
	return c.zoneBool(ctx, address, zone, "set3dSurround", enabled)
}

// SetBalance sets the left/right balance.
func (c *Client) SetBalance(ctx context.Context, address, zone string, value int) error {
	return c.zoneInt(ctx, address, zone, "setBalance", "value", value)
}

// SetSleep sets the sleep timer in minutes (0 disables it).
func (c *Client) SetSleep(ctx context.Context, address, zone string, minutes int) error {
	return c.zoneInt(ctx, address, zone, "setSleep", "sleep", minutes)
}

// SetToneBass sets the bass level in manual tone mode.
func (c *Client) SetToneBass(ctx context.Context, address, zone string, value int) error {
	params := url.Values{"mode": {"manual"}, "bass": {strconv.Itoa(value)}}
	return c.Call(ctx, address, ZoneOp(zone, "setToneControl"), params, nil)
}

// SetToneTreble sets the treble level in manual tone mode.
func (c *Client) SetToneTreble(ctx context.Context, address, zone string, value int) error {
	params := url.Values{"mode": {"manual"}, "treble": {strconv.Itoa(value)}}
	return c.Call(ctx, address, ZoneOp(zone, "setToneControl"), params, nil)
}

// SetDialogueLevel sets the dialogue level.
func (c *Client) SetDialogueLevel(ctx context.Context, address, zone string, value int) error {
	return c.zoneInt(ctx, address, zone, "setDialogueLevel", "value", value)
}

// SetDialogueLift sets the dialogue lift.
func (c *Client) SetDialogueLift(ctx context.Context, address, zone string, value int) error {
	return c.zoneInt(ctx, address, zone, "setDialogueLift", "value", value)
}

// SetDTSDialogueControl sets the DTS dialogue control level.
func (c *Client) SetDTSDialogueControl(ctx context.Context, address, zone string, value int) error {
	return c.zoneInt(ctx, address, zone, "setDtsDialogueControl", "value", value)
}

// SetSubwooferVolume sets the subwoofer volume.
func (c *Client) SetSubwooferVolume(ctx context.Context, address, zone string, volume int) error {
	return c.zoneInt(ctx, address, zone, "setSubwooferVolume", "volume", volume)
}

func (c *Client) zoneBool(ctx context.Context, address, zone, name string, enabled bool) error {
	return c.Call(ctx, address, ZoneOp(zone, name), url.Values{"enable": {strconv.FormatBool(enabled)}}, nil)
}

func (c *Client) zoneInt(ctx context.Context, address, zone, name, key string, value int) error {
	return c.Call(ctx, address, ZoneOp(zone, name), url.Values{key: {strconv.Itoa(value)}}, nil)
}
