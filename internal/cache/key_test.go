package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseKey_DeterministicAndDistinct(t *testing.T) {
	k1 := ResponseKey("/stream/movie/tt1.json", "tt1", "tv", []string{"RD"}, map[string]string{"RD": "secret1"}, false)
	k2 := ResponseKey("/stream/movie/tt1.json", "tt1", "tv", []string{"RD"}, map[string]string{"RD": "secret1"}, false)
	assert.Equal(t, k1, k2)

	k3 := ResponseKey("/stream/movie/tt1.json", "tt1", "tv", []string{"RD"}, map[string]string{"RD": "secret2"}, false)
	assert.NotEqual(t, k1, k3)
}

func TestResponseKey_NeverContainsRawSecret(t *testing.T) {
	k := ResponseKey("/stream/movie/tt1.json", "tt1", "mobile", []string{"AD"}, map[string]string{"AD": "super-secret-token"}, true)
	assert.NotContains(t, k, "super-secret-token")
}
