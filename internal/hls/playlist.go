package hls

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grafov/m3u8"
)

const (
	// MethodNone is the METHOD value that declares unencrypted segments.
	MethodNone = "NONE"
	// MethodAES128 is the only supported encryption method.
	MethodAES128 = "AES-128"
)

var (
	// ErrEmptyPlaylist is reported as a warning when a playlist yields no segments.
	ErrEmptyPlaylist = errors.New("playlist contains no segments, please check the url")
	// ErrMasterPlaylist is the decode failure for a master (variant) playlist.
	ErrMasterPlaylist = errors.New("master playlists are not supported")
)

// KeyDirective carries the attributes of an #EXT-X-KEY line.
type KeyDirective struct {
	Method string
	// URI is already resolved against the playlist URL.
	URI string
	// IV holds the literal text bytes of the IV attribute, nil when absent.
	// The value is not hex-decoded.
	IV []byte
}

// Encrypted reports whether segments need to be decrypted.
func (k *KeyDirective) Encrypted() bool {
	return k != nil && k.Method != MethodNone && k.URI != ""
}

// Playlist is the parsed form of a media playlist.
type Playlist struct {
	// Segments holds absolute segment URLs in playlist order.
	Segments []string
	// Key is nil when the playlist has no #EXT-X-KEY line.
	Key *KeyDirective
	// Warnings collects non-fatal problems found while parsing.
	Warnings []string
}

// Parse extracts the segment URLs and the encryption directive from a media playlist.
// Every reference is resolved against playlistURL. A playlist that cannot be decoded is
// reported as empty.
func Parse(text, playlistURL string) *Playlist {
	pl := &Playlist{}

	media, err := decodeMedia(text)
	if err == nil {
		for _, seg := range media.Segments {
			if seg == nil {
				continue
			}
			pl.Segments = append(pl.Segments, Resolve(strings.TrimSpace(seg.URI), playlistURL))
		}
		pl.Key = keyDirective(media, playlistURL)
	}

	if len(pl.Segments) == 0 {
		msg := ErrEmptyPlaylist.Error()
		if err != nil {
			msg += ": " + err.Error()
		}
		pl.Warnings = append(pl.Warnings, msg)
	}
	return pl
}

// decodeMedia decodes text leniently: a missing #EXTM3U header and unknown tags are tolerated.
func decodeMedia(text string) (media *m3u8.MediaPlaylist, err error) {
	// The decoder indexes past its segment list when a key tag precedes a URI without #EXTINF.
	defer func() {
		if r := recover(); r != nil {
			media, err = nil, fmt.Errorf("malformed playlist: %v", r)
		}
	}()

	p, listType, err := m3u8.DecodeFrom(strings.NewReader(strings.ReplaceAll(text, "\r\n", "\n")), false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, ErrMasterPlaylist
	}
	media, ok := p.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, ErrMasterPlaylist
	}
	return media, nil
}

// keyDirective returns the first key declared by the playlist.
func keyDirective(media *m3u8.MediaPlaylist, playlistURL string) *KeyDirective {
	k := media.Key
	if k == nil {
		for _, seg := range media.Segments {
			if seg != nil && seg.Key != nil {
				k = seg.Key
				break
			}
		}
	}
	if k == nil {
		return nil
	}

	kd := &KeyDirective{Method: k.Method}
	if k.URI != "" {
		kd.URI = Resolve(k.URI, playlistURL)
	}
	if k.IV != "" {
		kd.IV = []byte(k.IV)
	}
	return kd
}
