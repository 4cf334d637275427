package catalog

import (
	"encoding/json"
	"fmt"

	"chansync/internal/models"
)

// document mirrors models.LibraryData with per-entry deferred decoding.
//
// Any entry that fails to decode fails the whole document.
type document struct {
	ChannelName string            `json:"channel_name"`
	ChannelURL  string            `json:"channel_url"`
	Source      string            `json:"source"`
	Vids        []json.RawMessage `json:"vids"`
}

func decode(data []byte) (models.LibraryData, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.LibraryData{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	src, err := models.ParseSource(doc.Source)
	if err != nil {
		return models.LibraryData{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	lib := models.LibraryData{
		ChannelName: doc.ChannelName,
		ChannelURL:  doc.ChannelURL,
		Source:      src,
		Vids:        make([]models.Entry, 0, len(doc.Vids)),
	}
	for i, raw := range doc.Vids {
		var e models.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return models.LibraryData{}, fmt.Errorf("%w: entry %d: %v", ErrDecode, i, err)
		}
		lib.Vids = append(lib.Vids, e)
	}
	return lib, nil
}

func encode(lib models.LibraryData) ([]byte, error) {
	if lib.Vids == nil {
		lib.Vids = []models.Entry{}
	}
	return json.MarshalIndent(lib, "", "    ")
}
