package hls_test

import (
	"hlsfetch/internal/hls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playlistURL = "http://host/path/index.m3u8"

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		ref  string
		base string
		want string
	}{
		{"relative", "seg1.ts", "http://host/path/index.m3u8", "http://host/path/seg1.ts"},
		{"root relative", "/seg1.ts", "http://host/path/index.m3u8", "http://host/seg1.ts"},
		{"absolute", "http://other/seg.ts", "http://host/x.m3u8", "http://other/seg.ts"},
		{"https absolute", "https://cdn/a/b.ts", "http://host/x.m3u8", "https://cdn/a/b.ts"},
		{"relative subdir", "hd/seg.ts", "https://host/a/b/list.m3u8?tok=1", "https://host/a/b/hd/seg.ts"},
		{"dot segments kept", "../seg.ts", "http://host/path/index.m3u8", "http://host/path/../seg.ts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, hls.Resolve(tc.ref, tc.base))
		})
	}
}

// TestParse_PlainPlaylist verifies segment extraction and ordering.
func TestParse_PlainPlaylist(t *testing.T) {
	text := "#EXTM3U\r\n#EXT-X-VERSION:3\r\n#EXT-X-TARGETDURATION:10\r\n" +
		"#EXTINF:10.0,\r\nseg0.ts\r\n" +
		"#EXTINF:10.0,\r\n/abs/seg1.ts\r\n" +
		"#EXTINF:9.5,\r\nhttp://cdn/seg2.ts?x=1\r\n" +
		"#EXT-X-ENDLIST\r\n"

	pl := hls.Parse(text, playlistURL)

	assert.Nil(t, pl.Key)
	assert.Empty(t, pl.Warnings)
	assert.Equal(t, []string{
		"http://host/path/seg0.ts",
		"http://host/abs/seg1.ts",
		"http://cdn/seg2.ts?x=1",
	}, pl.Segments)
}

// TestParse_KeyDirective verifies that the encryption attributes are extracted and the key URI resolved.
func TestParse_KeyDirective(t *testing.T) {
	text := "#EXTM3U\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\",IV=0x00000000000000000000000000000001\n" +
		"#EXTINF:4,\nseg0.ts\n"

	pl := hls.Parse(text, playlistURL)

	require.NotNil(t, pl.Key)
	assert.True(t, pl.Key.Encrypted())
	assert.Equal(t, "AES-128", pl.Key.Method)
	assert.Equal(t, "http://host/path/key.bin", pl.Key.URI)
	// The IV keeps its literal text bytes.
	assert.Equal(t, []byte("0x00000000000000000000000000000001"), pl.Key.IV)
	assert.Len(t, pl.Segments, 1)
}

func TestParse_KeyWithoutIV(t *testing.T) {
	text := "#EXT-X-KEY:METHOD=AES-128,URI=\"/keys/k\"\n#EXTINF:4,\nseg0.ts\n"

	pl := hls.Parse(text, playlistURL)

	require.NotNil(t, pl.Key)
	assert.Nil(t, pl.Key.IV)
	assert.Equal(t, "http://host/keys/k", pl.Key.URI)
}

func TestParse_MethodNone(t *testing.T) {
	pl := hls.Parse("#EXTM3U\n#EXT-X-KEY:METHOD=NONE\n#EXTINF:4,\nseg0.ts\n", playlistURL)

	require.NotNil(t, pl.Key)
	assert.False(t, pl.Key.Encrypted())
}

// TestParse_Empty verifies that a playlist without segment lines is a warning, not an error.
func TestParse_Empty(t *testing.T) {
	pl := hls.Parse("#EXTM3U\n#EXT-X-ENDLIST\n", playlistURL)

	assert.Empty(t, pl.Segments)
	require.Len(t, pl.Warnings, 1)
	assert.Contains(t, pl.Warnings[0], hls.ErrEmptyPlaylist.Error())
}

// TestParse_SegmentRule verifies that every URI following #EXTINF is a segment, whatever its extension.
func TestParse_SegmentRule(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:4\n" +
		"#EXTINF:4,\nchunk0.m4s\n" +
		"#EXTINF:4,title\nplay?seg=1&tok=abc\n" +
		"#EXTINF:4,\nSEG2.TS\n" +
		"#EXT-X-ENDLIST\n"

	pl := hls.Parse(text, playlistURL)

	assert.Empty(t, pl.Warnings)
	assert.Equal(t, []string{
		"http://host/path/chunk0.m4s",
		"http://host/path/play?seg=1&tok=abc",
		"http://host/path/SEG2.TS",
	}, pl.Segments)
}

// TestParse_WithoutHeader verifies that a missing #EXTM3U line is tolerated.
func TestParse_WithoutHeader(t *testing.T) {
	pl := hls.Parse("#EXTINF:4,\nseg0.ts\n#EXTINF:4,\nseg1.ts\n", playlistURL)

	assert.Equal(t, []string{"http://host/path/seg0.ts", "http://host/path/seg1.ts"}, pl.Segments)
}

// TestParse_Malformed verifies that undecodable input degrades to an empty playlist warning.
func TestParse_Malformed(t *testing.T) {
	for name, text := range map[string]string{
		"no tags":             "just some text\n",
		"key before bare uri": "#EXT-X-KEY:METHOD=AES-128,URI=\"k\"\nseg0.ts\n",
	} {
		t.Run(name, func(t *testing.T) {
			var pl *hls.Playlist
			require.NotPanics(t, func() { pl = hls.Parse(text, playlistURL) })
			assert.Empty(t, pl.Segments)
			require.Len(t, pl.Warnings, 1)
			assert.Contains(t, pl.Warnings[0], hls.ErrEmptyPlaylist.Error())
		})
	}
}

func TestParse_MasterPlaylist(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1280000\nlow/index.m3u8\n"

	pl := hls.Parse(text, playlistURL)

	assert.Empty(t, pl.Segments)
	require.Len(t, pl.Warnings, 1)
	assert.Contains(t, pl.Warnings[0], hls.ErrMasterPlaylist.Error())
}
