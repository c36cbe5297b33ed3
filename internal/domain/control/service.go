// Package control maps zone and playback intents onto device calls.
// It keeps no state: every call goes to the device and its error is returned as is.
package control

import (
	"context"

	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
)

// Transport is the part of the MusicCast client the service forwards to.
type Transport interface {
	GetZoneStatus(ctx context.Context, address, zone string) (*musiccast.ZoneStatus, error)
	GetSignalInfo(ctx context.Context, address, zone string) (*musiccast.SignalInfo, error)
	GetPlayInfo(ctx context.Context, address string) (*musiccast.PlayInfo, error)
	GetRecentInfo(ctx context.Context, address string) (*musiccast.RecentInfo, error)
	GetYpaoConfig(ctx context.Context, address string) (*musiccast.YpaoConfig, error)

	TogglePower(ctx context.Context, address, zone string) error
	SetPower(ctx context.Context, address, zone, power string) error
	StepVolume(ctx context.Context, address, zone string, dir musiccast.VolumeStep) error
	SetVolume(ctx context.Context, address, zone string, volume int) error
	SetMute(ctx context.Context, address, zone string, enabled bool) error
	SetToneBass(ctx context.Context, address, zone string, value int) error
	SetToneTreble(ctx context.Context, address, zone string, value int) error
	SetDialogueLevel(ctx context.Context, address, zone string, value int) error
	SetDialogueLift(ctx context.Context, address, zone string, value int) error
	SetDTSDialogueControl(ctx context.Context, address, zone string, value int) error
	SetSubwooferVolume(ctx context.Context, address, zone string, volume int) error
	SetSoundProgram(ctx context.Context, address, zone, program string) error
	SetInput(ctx context.Context, address, zone, input string) error
	SetExtraBass(ctx context.Context, address, zone string, enabled bool) error
	SetEnhancer(ctx context.Context, address, zone string, enabled bool) error
	SetPureDirect(ctx context.Context, address, zone string, enabled bool) error
	SetDirect(ctx context.Context, address, zone string, enabled bool) error
	Set3DSurround(ctx context.Context, address, zone string, enabled bool) error
	SetBalance(ctx context.Context, address, zone string, value int) error
	SetSleep(ctx context.Context, address, zone string, minutes int) error
	SetYpaoVolume(ctx context.Context, address string, enabled bool) error

	SetPlayback(ctx context.Context, address string, p musiccast.Playback) error
	SetRepeat(ctx context.Context, address string, mode musiccast.RepeatMode) error
	SetShuffle(ctx context.Context, address string, mode musiccast.ShuffleMode) error
	ToggleRepeat(ctx context.Context, address string) error
	ToggleShuffle(ctx context.Context, address string) error
	SetPlayPosition(ctx context.Context, address string, position int) error
	RecallRecentItem(ctx context.Context, address, zone string, num int) error
	SetListControl(ctx context.Context, address, listID string, ctl musiccast.ListControl, index int, zone string) error
}

// Service forwards control intents to devices.
type Service struct {
	t Transport
}

// NewService creates a control service.
func NewService(t Transport) *Service {
	return &Service{t: t}
}

func zoneOrMain(zone string) string {
	if zone == "" {
		return musiccast.MainZone
	}
	return zone
}

// Queries. These always hit the device.

func (s *Service) ZoneStatus(ctx context.Context, address, zone string) (*musiccast.ZoneStatus, error) {
	return s.t.GetZoneStatus(ctx, address, zoneOrMain(zone))
}

func (s *Service) SignalInfo(ctx context.Context, address, zone string) (*musiccast.SignalInfo, error) {
	return s.t.GetSignalInfo(ctx, address, zoneOrMain(zone))
}

func (s *Service) PlayInfo(ctx context.Context, address string) (*musiccast.PlayInfo, error) {
	return s.t.GetPlayInfo(ctx, address)
}

func (s *Service) RecentInfo(ctx context.Context, address string) (*musiccast.RecentInfo, error) {
	return s.t.GetRecentInfo(ctx, address)
}

func (s *Service) YpaoConfig(ctx context.Context, address string) (*musiccast.YpaoConfig, error) {
	return s.t.GetYpaoConfig(ctx, address)
}

// Zone intents.

func (s *Service) TogglePower(ctx context.Context, address, zone string) error {
	return s.t.TogglePower(ctx, address, zoneOrMain(zone))
}

func (s *Service) SetPower(ctx context.Context, address, zone, power string) error {
	return s.t.SetPower(ctx, address, zoneOrMain(zone), power)
}

func (s *Service) VolumeUp(ctx context.Context, address, zone string) error {
	return s.t.StepVolume(ctx, address, zoneOrMain(zone), musiccast.VolumeUp)
}

func (s *Service) VolumeDown(ctx context.Context, address, zone string) error {
	return s.t.StepVolume(ctx, address, zoneOrMain(zone), musiccast.VolumeDown)
}

func (s *Service) SetVolume(ctx context.Context, address, zone string, volume int) error {
	return s.t.SetVolume(ctx, address, zoneOrMain(zone), volume)
}

func (s *Service) SetMute(ctx context.Context, address, zone string, enabled bool) error {
	return s.t.SetMute(ctx, address, zoneOrMain(zone), enabled)
}

func (s *Service) SetToneBass(ctx context.Context, address, zone string, value int) error {
	return s.t.SetToneBass(ctx, address, zoneOrMain(zone), value)
}

func (s *Service) SetToneTreble(ctx context.Context, address, zone string, value int) error {
	return s.t.SetToneTreble(ctx, address, zoneOrMain(zone), value)
}

func (s *Service) SetDialogueLevel(ctx context.Context, address, zone string, value int) error {
	return s.t.SetDialogueLevel(ctx, address, zoneOrMain(zone), value)
}

func (s *Service) SetDialogueLift(ctx context.Context, address, zone string, value int) error {
	return s.t.SetDialogueLift(ctx, address, zoneOrMain(zone), value)
}

func (s *Service) SetDTSDialogueControl(ctx context.Context, address, zone string, value int) error {
	return s.t.SetDTSDialogueControl(ctx, address, zoneOrMain(zone), value)
}

func (s *Service) SetSubwooferVolume(ctx context.Context, address, zone string, volume int) error {
	return s.t.SetSubwooferVolume(ctx, address, zoneOrMain(zone), volume)
}

func (s *Service) SetSoundProgram(ctx context.Context, address, zone, program string) error {
	return s.t.SetSoundProgram(ctx, address, zoneOrMain(zone), program)
}

func (s *Service) SetInput(ctx context.Context, address, zone, input string) error {
	return s.t.SetInput(ctx, address, zoneOrMain(zone), input)
}

func (s *Service) SetExtraBass(ctx context.Context, address, zone string, enabled bool) error {
	return s.t.SetExtraBass(ctx, address, zoneOrMain(zone), enabled)
}

func (s *Service) SetEnhancer(ctx context.Context, address, zone string, enabled bool) error {
	return s.t.SetEnhancer(ctx, address, zoneOrMain(zone), enabled)
}

func (s *Service) SetPureDirect(ctx context.Context, address, zone string, enabled bool) error {
	return s.t.SetPureDirect(ctx, address, zoneOrMain(zone), enabled)
}

func (s *Service) SetDirect(ctx context.Context, address, zone string, enabled bool) error {
	return s.t.SetDirect(ctx, address, zoneOrMain(zone), enabled)
}

func (s *Service) Set3DSurround(ctx context.Context, address, zone string, enabled bool) error {
	return s.t.Set3DSurround(ctx, address, zoneOrMain(zone), enabled)
}

func (s *Service) SetBalance(ctx context.Context, address, zone string, value int) error {
	return s.t.SetBalance(ctx, address, zoneOrMain(zone), value)
}

func (s *Service) SetSleep(ctx context.Context, address, zone string, minutes int) error {
	return s.t.SetSleep(ctx, address, zoneOrMain(zone), minutes)
}

func (s *Service) SetYpaoVolume(ctx context.Context, address string, enabled bool) error {
	return s.t.SetYpaoVolume(ctx, address, enabled)
}

// Playback intents.

func (s *Service) Playback(ctx context.Context, address string, p musiccast.Playback) error {
	return s.t.SetPlayback(ctx, address, p)
}

func (s *Service) SetRepeat(ctx context.Context, address string, mode musiccast.RepeatMode) error {
	return s.t.SetRepeat(ctx, address, mode)
}

func (s *Service) SetShuffle(ctx context.Context, address string, mode musiccast.ShuffleMode) error {
	return s.t.SetShuffle(ctx, address, mode)
}

func (s *Service) ToggleRepeat(ctx context.Context, address string) error {
	return s.t.ToggleRepeat(ctx, address)
}

func (s *Service) ToggleShuffle(ctx context.Context, address string) error {
	return s.t.ToggleShuffle(ctx, address)
}

func (s *Service) Seek(ctx context.Context, address string, position int) error {
	return s.t.SetPlayPosition(ctx, address, position)
}

func (s *Service) RecallRecent(ctx context.Context, address, zone string, num int) error {
	return s.t.RecallRecentItem(ctx, address, zoneOrMain(zone), num)
}

// ListControl sends a raw list action; index < 0 omits the index.
func (s *Service) ListControl(ctx context.Context, address string, ctl musiccast.ListControl, index int, zone string) error {
	return s.t.SetListControl(ctx, address, musiccast.MainList, ctl, index, zone)
}
