package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnFail_SaturatesAtCeiling(t *testing.T) {
	s := New()
	for i := 0; i < 20; i++ {
		s.OnFail("example.com")
	}
	assert.Equal(t, Ceiling, s.Penalty("example.com"))
}

func TestOnOK_ClampsAtZero(t *testing.T) {
	s := New()
	s.OnFail("example.com")
	s.OnOK("example.com")
	s.OnOK("example.com") // no-op, already zero
	assert.Equal(t, 0, s.Penalty("example.com"))
}

func TestOnOK_NoOpOnUnknownHost(t *testing.T) {
	s := New()
	s.OnOK("never-seen.example.com")
	assert.Equal(t, 0, s.Penalty("never-seen.example.com"))
	assert.Len(t, s.Snapshot(), 0)
}

func TestClearAll(t *testing.T) {
	s := New()
	s.OnFail("a.example.com")
	s.OnFail("b.example.com")
	s.ClearAll()
	assert.Len(t, s.Snapshot(), 0)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", HostOf("https://example.com/path?x=1"))
	assert.Equal(t, "", HostOf("://bad-url"))
}
