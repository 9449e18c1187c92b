package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPlaylistURL(t *testing.T) {
	assert.NoError(t, checkPlaylistURL("http://host/index.m3u8"))
	assert.NoError(t, checkPlaylistURL("https://host/index.m3u8"))

	for _, raw := range []string{"", "host/index.m3u8", "ftp://host/index.m3u8", "file:///tmp/index.m3u8", "httpx://host"} {
		assert.Error(t, checkPlaylistURL(raw), raw)
	}
}
