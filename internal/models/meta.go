// internal/models/meta.go
package models

// RoomMeta is the mutable display metadata of a room. Last-writer-wins,
// no versioning.
type RoomMeta struct {
	Title            string `json:"title"`
	CoverImageURL    string `json:"coverImageUrl"`
	CoverDescription string `json:"coverDescription"`
}

// MetaPatch is a partial update to RoomMeta. Nil fields are left untouched
// so a host can update a single field without clobbering the others.
type MetaPatch struct {
	Title            *string `json:"title,omitempty"`
	CoverImageURL    *string `json:"coverImageUrl,omitempty"`
	CoverDescription *string `json:"coverDescription,omitempty"`
}

// Apply shallow-merges the patch into m.
func (p MetaPatch) Apply(m *RoomMeta) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.CoverImageURL != nil {
		m.CoverImageURL = *p.CoverImageURL
	}
	if p.CoverDescription != nil {
		m.CoverDescription = *p.CoverDescription
	}
}
