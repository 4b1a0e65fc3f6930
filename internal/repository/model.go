package repository

import (
	"encoding/json"
	"reflect"
)

// Metadata holds versioning info for optimistic locking between the in-memory
// registry and the roster file on disk.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// Entry is one tracked document in the persisted roster.
type Entry struct {
	ID   string `json:"id" validate:"required"`
	Path string `json:"path" validate:"required"`
}

// Roster represents the persisted JSON structure: the set of documents the
// sweeper was tracking when the roster was last flushed.
type Roster struct {
	Metadata  Metadata `json:"metadata"`
	Documents []Entry  `json:"documents" validate:"dive"`
}

// ApplyDefaults sets fallback values after decode.
func (r *Roster) ApplyDefaults() {
	if r.Documents == nil {
		r.Documents = []Entry{}
	}
	for i := range r.Documents {
		if r.Documents[i].ID == "" {
			r.Documents[i].ID = r.Documents[i].Path
		}
	}
}

// AreRostersEqual compares two rosters ignoring Metadata.
// Uses JSON serialization for flexible comparison.
func AreRostersEqual(a, b *Roster) bool {
	if a == nil || b == nil {
		return a == b
	}

	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var aMap, bMap map[string]interface{}
	if err := json.Unmarshal(aBytes, &aMap); err != nil {
		return false
	}
	if err := json.Unmarshal(bBytes, &bMap); err != nil {
		return false
	}

	delete(aMap, "metadata")
	delete(bMap, "metadata")

	return reflect.DeepEqual(aMap, bMap)
}
