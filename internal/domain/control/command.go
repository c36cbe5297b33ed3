package control

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/edumarques81/stellar-musiccast/internal/infra/musiccast"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidValue   = errors.New("invalid command value")
)

// Command is a named intent as received from a UI client. Value holds a
// decoded JSON scalar: float64, bool or string.
type Command struct {
	Name  string `json:"command"`
	Zone  string `json:"zone,omitempty"`
	Value any    `json:"value,omitempty"`
}

type handler func(s *Service, ctx context.Context, address string, c Command) error

var handlers = map[string]handler{
	"power_toggle": func(s *Service, ctx context.Context, a string, c Command) error {
		return s.TogglePower(ctx, a, c.Zone)
	},
	"power": withString(func(s *Service, ctx context.Context, a, zone, v string) error {
		if v != "on" && v != "standby" {
			return fmt.Errorf("%w: power %q", ErrInvalidValue, v)
		}
		return s.SetPower(ctx, a, zone, v)
	}),
	"volume_up": func(s *Service, ctx context.Context, a string, c Command) error {
		return s.VolumeUp(ctx, a, c.Zone)
	},
	"volume_down": func(s *Service, ctx context.Context, a string, c Command) error {
		return s.VolumeDown(ctx, a, c.Zone)
	},
	"volume":               withInt((*Service).SetVolume),
	"mute":                 withBool((*Service).SetMute),
	"tone_bass":            withInt((*Service).SetToneBass),
	"tone_treble":          withInt((*Service).SetToneTreble),
	"dialogue_level":       withInt((*Service).SetDialogueLevel),
	"dialogue_lift":        withInt((*Service).SetDialogueLift),
	"dts_dialogue_control": withInt((*Service).SetDTSDialogueControl),
	"subwoofer_volume":     withInt((*Service).SetSubwooferVolume),
	"balance":              withInt((*Service).SetBalance),
	"sleep":                withInt((*Service).SetSleep),
	"sound_program":        withString((*Service).SetSoundProgram),
	"input":                withString((*Service).SetInput),
	"extra_bass":           withBool((*Service).SetExtraBass),
	"enhancer":             withBool((*Service).SetEnhancer),
	"pure_direct":          withBool((*Service).SetPureDirect),
	"direct":               withBool((*Service).SetDirect),
	"surround_3d":          withBool((*Service).Set3DSurround),
	"ypao_volume": func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := boolValue(c.Value)
		if err != nil {
			return err
		}
		return s.SetYpaoVolume(ctx, a, v)
	},
	"playback": func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := stringValue(c.Value)
		if err != nil {
			return err
		}
		return s.Playback(ctx, a, musiccast.Playback(v))
	},
	"repeat": func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := stringValue(c.Value)
		if err != nil {
			return err
		}
		return s.SetRepeat(ctx, a, musiccast.RepeatMode(v))
	},
	"shuffle": func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := stringValue(c.Value)
		if err != nil {
			return err
		}
		return s.SetShuffle(ctx, a, musiccast.ShuffleMode(v))
	},
	"toggle_repeat": func(s *Service, ctx context.Context, a string, c Command) error {
		return s.ToggleRepeat(ctx, a)
	},
	"toggle_shuffle": func(s *Service, ctx context.Context, a string, c Command) error {
		return s.ToggleShuffle(ctx, a)
	},
	"seek": func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := intValue(c.Value)
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("%w: negative position", ErrInvalidValue)
		}
		return s.Seek(ctx, a, v)
	},
	"recall_recent": withInt((*Service).RecallRecent),
}

// Commands returns the names Execute accepts.
func Commands() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	return names
}

// Execute runs a named command against the device at address.
func (s *Service) Execute(ctx context.Context, address string, c Command) error {
	h, ok := handlers[c.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
	return h(s, ctx, address, c)
}

func withInt(fn func(*Service, context.Context, string, string, int) error) handler {
	return func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := intValue(c.Value)
		if err != nil {
			return err
		}
		return fn(s, ctx, a, c.Zone, v)
	}
}

func withBool(fn func(*Service, context.Context, string, string, bool) error) handler {
	return func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := boolValue(c.Value)
		if err != nil {
			return err
		}
		return fn(s, ctx, a, c.Zone, v)
	}
}

func withString(fn func(*Service, context.Context, string, string, string) error) handler {
	return func(s *Service, ctx context.Context, a string, c Command) error {
		v, err := stringValue(c.Value)
		if err != nil {
			return err
		}
		return fn(s, ctx, a, c.Zone, v)
	}
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, n)
		}
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("%w: expected a number, got %T", ErrInvalidValue, v)
}

func boolValue(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("%w: expected a boolean, got %T", ErrInvalidValue, v)
}

func stringValue(v any) (string, error) {
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", fmt.Errorf("%w: expected a non-empty string, got %v", ErrInvalidValue, v)
}
