package browser

// Attribute bits of a content list item.
const (
	AttrNameTruncated uint32 = 1 << 0
	AttrSelectable    uint32 = 1 << 1
	AttrPlayable      uint32 = 1 << 2
	AttrSearchable    uint32 = 1 << 3
	AttrArtwork       uint32 = 1 << 4
)

// Attributes are the decoded capability flags of a list item.
type Attributes struct {
	NameTruncated bool `json:"isNameTruncated"`
	Selectable    bool `json:"isSelectable"`
	Playable      bool `json:"isPlayable"`
	Searchable    bool `json:"isSearchable"`
	HasArtwork    bool `json:"hasArtwork"`
}

// DecodeAttributes decodes a raw attribute field. Unknown bits are ignored.
func DecodeAttributes(raw uint32) Attributes {
	return Attributes{
		NameTruncated: raw&AttrNameTruncated != 0,
		Selectable:    raw&AttrSelectable != 0,
		Playable:      raw&AttrPlayable != 0,
		Searchable:    raw&AttrSearchable != 0,
		HasArtwork:    raw&AttrArtwork != 0,
	}
}
