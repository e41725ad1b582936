package userdata

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autostream/gateway/internal/debrid"
)

func TestParse_KeysAndAliases(t *testing.T) {
	q, _ := url.ParseQuery("rd=abc123&tb=xyz789&max_size=1.5&lang_prio=en,pt-BR&blacklist=cam,ts")
	opts, err := Parse(q)
	require.NoError(t, err)
	assert.Equal(t, "abc123", opts.Keys[debrid.TagRealDebrid])
	assert.Equal(t, "xyz789", opts.Keys[debrid.TagTorBox])
	assert.Equal(t, int64(1.5*1024*1024*1024), opts.MaxSizeBytes)
	assert.Equal(t, []string{"en", "pt-BR"}, opts.LangPriority)
	assert.Equal(t, []string{"cam", "ts"}, opts.Blacklist)
}

func TestParse_InvalidKeyFormat(t *testing.T) {
	q, _ := url.ParseQuery("rd=" + url.QueryEscape("has spaces!"))
	_, err := Parse(q)
	require.Error(t, err)
}

func TestParse_CookieRejectsCRLF(t *testing.T) {
	q, _ := url.ParseQuery("cookie=" + url.QueryEscape("a\r\nb"))
	_, err := Parse(q)
	require.Error(t, err)
}

func TestParse_OnlyRestrictsToEnum(t *testing.T) {
	q, _ := url.ParseQuery("only=not-a-real-source")
	_, err := Parse(q)
	require.Error(t, err)

	q, _ = url.ParseQuery("only=tpb")
	opts, err := Parse(q)
	require.NoError(t, err)
	assert.Equal(t, "tpb", opts.Only)
}

func TestSelectedProvider_PriorityOrder(t *testing.T) {
	opts := Options{Keys: map[debrid.ProviderTag]string{
		debrid.TagTorBox:     "t",
		debrid.TagRealDebrid: "r",
		debrid.TagAllDebrid:  "a",
	}}
	tag, key, ok := opts.SelectedProvider()
	require.True(t, ok)
	assert.Equal(t, debrid.TagAllDebrid, tag)
	assert.Equal(t, "a", key)
}

func TestSelectedProvider_NoneSupplied(t *testing.T) {
	opts := Options{Keys: map[debrid.ProviderTag]string{}}
	_, _, ok := opts.SelectedProvider()
	assert.False(t, ok)
}
