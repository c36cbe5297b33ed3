package musiccast

import (
	"encoding/json"
	"reflect"
	"strings"
)

// DeviceInfo is the identity descriptor returned by system/getDeviceInfo.
// Keys this type does not know are kept in Extra so newer firmware fields survive.
type DeviceInfo struct {
	ModelName           string        `json:"model_name"`
	Destination         string        `json:"destination"`
	DeviceID            string        `json:"device_id"`
	SystemID            string        `json:"system_id"`
	SystemVersion       float64       `json:"system_version"`
	APIVersion          float64       `json:"api_version"`
	NetmoduleGeneration int           `json:"netmodule_generation"`
	NetmoduleVersion    string        `json:"netmodule_version"`
	NetmoduleChecksum   string        `json:"netmodule_checksum"`
	SerialNumber        string        `json:"serial_number"`
	OperationMode       string        `json:"operation_mode"`
	UpdateErrorCode     string        `json:"update_error_code"`
	NetModuleNum        int           `json:"net_module_num"`
	UpdateDataType      int           `json:"update_data_type"`
	AnalyticsInfo       AnalyticsInfo `json:"analytics_info"`

	Extra map[string]json.RawMessage `json:"-"`
}

// AnalyticsInfo carries the device analytics identifier.
type AnalyticsInfo struct {
	UUID string `json:"uuid"`
}

func (d *DeviceInfo) UnmarshalJSON(data []byte) error {
	type plain DeviceInfo
	extra, err := decodeWithExtra(data, (*plain)(d))
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

func (d DeviceInfo) MarshalJSON() ([]byte, error) {
	type plain DeviceInfo
	return encodeWithExtra(plain(d), d.Extra)
}

// Features is the capability manifest returned by system/getFeatures.
// Only the parts the controller reasons about are typed; tuner, distribution,
// ccs and anything newer travel in Extra.
type Features struct {
	System FeatureSystem `json:"system"`
	Zone   []Zone        `json:"zone"`
	NetUSB *NetUSB       `json:"netusb,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// FeatureSystem describes system-wide functions and inputs.
type FeatureSystem struct {
	FuncList      []string      `json:"func_list"`
	ZoneNum       int           `json:"zone_num"`
	InputList     []SystemInput `json:"input_list"`
	WebControlURL string        `json:"web_control_url,omitempty"`
}

// SystemInput describes one input source.
type SystemInput struct {
	ID                 string `json:"id"`
	DistributionEnable bool   `json:"distribution_enable"`
	RenameEnable       bool   `json:"rename_enable"`
	AccountEnable      bool   `json:"account_enable"`
	PlayInfoType       string `json:"play_info_type"`
}

// Zone describes the functions and ranges of one zone.
type Zone struct {
	ID                  string      `json:"id"`
	ZoneB               bool        `json:"zone_b,omitempty"`
	FuncList            []string    `json:"func_list"`
	InputList           []string    `json:"input_list"`
	SoundProgramList    []string    `json:"sound_program_list,omitempty"`
	SurrDecoderTypeList []string    `json:"surr_decoder_type_list,omitempty"`
	ToneControlModeList []string    `json:"tone_control_mode_list,omitempty"`
	LinkControlList     []string    `json:"link_control_list,omitempty"`
	ActualVolumeModes   []string    `json:"actual_volume_mode_list,omitempty"`
	RangeStep           []RangeStep `json:"range_step"`
	SceneNum            int         `json:"scene_num,omitempty"`
	CursorList          []string    `json:"cursor_list,omitempty"`
	MenuList            []string    `json:"menu_list,omitempty"`
}

// RangeStep is the numeric range of one control, e.g. volume or tone_control.
type RangeStep struct {
	ID   string  `json:"id"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// NetUSB describes network/USB playback capabilities.
type NetUSB struct {
	FuncList     []string `json:"func_list"`
	NetRadioType string   `json:"net_radio_type,omitempty"`
	Preset       struct {
		Num int `json:"num"`
	} `json:"preset"`
	RecentInfo struct {
		Num int `json:"num"`
	} `json:"recent_info"`
}

func (f *Features) UnmarshalJSON(data []byte) error {
	type plain Features
	extra, err := decodeWithExtra(data, (*plain)(f))
	if err != nil {
		return err
	}
	f.Extra = extra
	return nil
}

func (f Features) MarshalJSON() ([]byte, error) {
	type plain Features
	return encodeWithExtra(plain(f), f.Extra)
}

// ZoneByID returns the zone with the given id.
func (f *Features) ZoneByID(id string) (Zone, bool) {
	for _, z := range f.Zone {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// InputIDs returns the ids of all system inputs in manifest order.
func (f *Features) InputIDs() []string {
	ids := make([]string, 0, len(f.System.InputList))
	for _, in := range f.System.InputList {
		ids = append(ids, in.ID)
	}
	return ids
}

// Range returns the range of the control with the given id.
func (z Zone) Range(id string) (RangeStep, bool) {
	for _, r := range z.RangeStep {
		if r.ID == id {
			return r, true
		}
	}
	return RangeStep{}, false
}

// HasFunc reports whether the zone lists fn in its func_list.
func (z Zone) HasFunc(fn string) bool {
	for _, f := range z.FuncList {
		if f == fn {
			return true
		}
	}
	return false
}

// ZoneStatus is returned by <zone>/getStatus.
type ZoneStatus struct {
	Power              string       `json:"power"`
	Sleep              int          `json:"sleep"`
	Volume             int          `json:"volume"`
	Mute               bool         `json:"mute"`
	MaxVolume          int          `json:"max_volume"`
	Input              string       `json:"input"`
	InputText          string       `json:"input_text"`
	SoundProgram       string       `json:"sound_program"`
	SurrDecoderType    string       `json:"surr_decoder_type"`
	PureDirect         bool         `json:"pure_direct"`
	Enhancer           bool         `json:"enhancer"`
	ToneControl        ToneControl  `json:"tone_control"`
	DialogueLevel      int          `json:"dialogue_level"`
	DialogueLift       int          `json:"dialogue_lift"`
	SubwooferVolume    int          `json:"subwoofer_volume"`
	ExtraBass          bool         `json:"extra_bass"`
	DtsDialogueControl int          `json:"dts_dialogue_control"`
	ActualVolume       ActualVolume `json:"actual_volume"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ToneControl is the bass/treble state of a zone.
type ToneControl struct {
	Mode   string `json:"mode"`
	Bass   int    `json:"bass"`
	Treble int    `json:"treble"`
}

// ActualVolume is the zone volume in the unit the device is configured for.
type ActualVolume struct {
	Mode  string  `json:"mode"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

func (s *ZoneStatus) UnmarshalJSON(data []byte) error {
	type plain ZoneStatus
	extra, err := decodeWithExtra(data, (*plain)(s))
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

func (s ZoneStatus) MarshalJSON() ([]byte, error) {
	type plain ZoneStatus
	return encodeWithExtra(plain(s), s.Extra)
}

// ZoneProgramList is returned by <zone>/getSoundProgramList.
type ZoneProgramList struct {
	SoundProgramList []string `json:"sound_program_list"`
}

// SignalInfo is returned by <zone>/getSignalInfo.
type SignalInfo struct {
	Audio AudioSignal `json:"audio"`
}

// AudioSignal describes the current input signal.
type AudioSignal struct {
	Error   int    `json:"error"`
	Format  string `json:"format"`
	FS      string `json:"fs"`
	Bit     string `json:"bit"`
	Bitrate int    `json:"bitrate"`
}

// PlayInfo is returned by netusb/getPlayInfo.
type PlayInfo struct {
	Input            string        `json:"input"`
	PlayQueueType    string        `json:"play_queue_type"`
	Playback         string        `json:"playback"`
	Repeat           RepeatMode    `json:"repeat"`
	Shuffle          ShuffleMode   `json:"shuffle"`
	PlayTime         int           `json:"play_time"`
	TotalTime        int           `json:"total_time"`
	Artist           string        `json:"artist"`
	Album            string        `json:"album"`
	Track            string        `json:"track"`
	AlbumartURL      string        `json:"albumart_url"`
	AlbumartID       int           `json:"albumart_id"`
	USBDevicetype    string        `json:"usb_devicetype"`
	AutoStopped      bool          `json:"auto_stopped"`
	Attribute        uint32        `json:"attribute"`
	RepeatAvailable  []RepeatMode  `json:"repeat_available"`
	ShuffleAvailable []ShuffleMode `json:"shuffle_available"`
}

// ListInfo is returned by netusb/getListInfo.
type ListInfo struct {
	Input        string     `json:"input"`
	MenuLayer    int        `json:"menu_layer"`
	MaxLine      int        `json:"max_line"`
	Index        int        `json:"index"`
	PlayingIndex int        `json:"playing_index"`
	MenuName     string     `json:"menu_name"`
	ListInfo     []ListItem `json:"list_info"`
}

// ListItem is one row of a content list.
type ListItem struct {
	Text      string   `json:"text"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Attribute uint32   `json:"attribute"`
	Subtexts  []string `json:"subtexts,omitempty"`
}

// RecentInfo is returned by netusb/getRecentInfo.
type RecentInfo struct {
	RecentInfo []RecentEntry `json:"recent_info"`
}

// RecentEntry is one recently played item.
type RecentEntry struct {
	Input        string `json:"input"`
	Text         string `json:"text"`
	AlbumartURL  string `json:"albumart_url"`
	PlayInfoType string `json:"play_info_type"`
	Attribute    uint32 `json:"attribute,omitempty"`
}

// YpaoConfig is returned by system/getYpaoConfig.
type YpaoConfig struct {
	YpaoVolume bool `json:"ypao_volume"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (y *YpaoConfig) UnmarshalJSON(data []byte) error {
	type plain YpaoConfig
	extra, err := decodeWithExtra(data, (*plain)(y))
	if err != nil {
		return err
	}
	y.Extra = extra
	return nil
}

func (y YpaoConfig) MarshalJSON() ([]byte, error) {
	type plain YpaoConfig
	return encodeWithExtra(plain(y), y.Extra)
}

// decodeWithExtra unmarshals data into v and returns every top-level key that
// v's json tags do not claim. response_code is never kept.
func decodeWithExtra(data []byte, v any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := jsonKeys(reflect.TypeOf(v).Elem())
	var extra map[string]json.RawMessage
	for k, val := range raw {
		if _, ok := known[k]; ok || k == "response_code" {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = val
	}
	return extra, nil
}

// encodeWithExtra marshals v and adds the extra keys that v does not produce.
func encodeWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = val
		}
	}
	return json.Marshal(merged)
}

func jsonKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		keys[name] = struct{}{}
	}
	return keys
}
