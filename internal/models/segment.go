package models

// Segment represents one media segment of a playlist download.
// This struct is persisted in progress.json; payload bytes are never stored on it.
type Segment struct {
	// URL is the fully-qualified URL to fetch the segment from, resolved once at parse time.
	URL string `json:"url"`
	// Done flips to true once the segment has been fetched, decrypted and persisted.
	Done bool `json:"done"`
	// Index is the zero-based position of the segment in the playlist and in the output file.
	Index int `json:"index"`
}

// Progress is the resume checkpoint of a single download.
type Progress struct {
	// PlaylistText is the raw playlist as fetched on the first run.
	PlaylistText string `json:"playlistText"`
	// List is the authoritative segment list. Once populated it is never re-derived.
	List []Segment `json:"list"`
}

// Pending reports how many segments are not yet done.
func (p *Progress) Pending() int {
	n := 0
	for _, s := range p.List {
		if !s.Done {
			n++
		}
	}
	return n
}

// Resumable reports whether the record holds a previously parsed playlist.
func (p *Progress) Resumable() bool {
	return len(p.List) > 0 && p.PlaylistText != ""
}
