package musiccast

// Playback is a transport command sent with netusb/setPlayback.
type Playback string

const (
	PlaybackPlay             Playback = "play"
	PlaybackStop             Playback = "stop"
	PlaybackPause            Playback = "pause"
	PlaybackPlayPause        Playback = "play_pause"
	PlaybackPrevious         Playback = "previous"
	PlaybackNext             Playback = "next"
	PlaybackFastReverseStart Playback = "fast_reverse_start"
	PlaybackFastReverseEnd   Playback = "fast_reverse_end"
	PlaybackFastForwardStart Playback = "fast_forward_start"
	PlaybackFastForwardEnd   Playback = "fast_forward_end"
)

// Valid reports whether p is a known playback command.
func (p Playback) Valid() bool {
	switch p {
	case PlaybackPlay, PlaybackStop, PlaybackPause, PlaybackPlayPause,
		PlaybackPrevious, PlaybackNext,
		PlaybackFastReverseStart, PlaybackFastReverseEnd,
		PlaybackFastForwardStart, PlaybackFastForwardEnd:
		return true
	}
	return false
}

// RepeatMode is the netusb repeat setting.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

// Valid reports whether m is a known repeat mode.
func (m RepeatMode) Valid() bool {
	return m == RepeatOff || m == RepeatOne || m == RepeatAll
}

// ShuffleMode is the netusb shuffle setting.
type ShuffleMode string

const (
	ShuffleOff    ShuffleMode = "off"
	ShuffleOn     ShuffleMode = "on"
	ShuffleSongs  ShuffleMode = "songs"
	ShuffleAlbums ShuffleMode = "albums"
)

// Valid reports whether m is a known shuffle mode.
func (m ShuffleMode) Valid() bool {
	return m == ShuffleOff || m == ShuffleOn || m == ShuffleSongs || m == ShuffleAlbums
}

// ListControl is the action sent with netusb/setListControl.
type ListControl string

const (
	ListSelect ListControl = "select"
	ListPlay   ListControl = "play"
	ListReturn ListControl = "return"
)

// Valid reports whether c is a known list control.
func (c ListControl) Valid() bool {
	return c == ListSelect || c == ListPlay || c == ListReturn
}

// VolumeStep is a relative volume direction for <zone>/setVolume.
type VolumeStep string

const (
	VolumeUp   VolumeStep = "up"
	VolumeDown VolumeStep = "down"
)

// MainZone is the zone id used when a caller does not name one.
const MainZone = "main"

// MainList is the list id used by netusb list operations.
const MainList = "main"
