package stremio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamItem_OmitsEmptyFields(t *testing.T) {
	s := StreamItem{Name: "AutoStream", Title: "Movie – 1080p", InfoHash: "ABC"}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"url"`)
	assert.Contains(t, string(b), `"infoHash":"ABC"`)
}

func TestStreamItem_ProxyHeadersCookie(t *testing.T) {
	s := StreamItem{
		URL: "https://example.com/file.mkv",
		BehaviorHints: &StreamBehaviorHints{
			Filename:     "file.mkv",
			ProxyHeaders: &ProxyHeaders{Cookie: "ui=abc"},
		},
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Cookie":"ui=abc"`)
}
