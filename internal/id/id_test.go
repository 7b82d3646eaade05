package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate("test")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixCategory, PrefixPage, PrefixTag} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(id, prefix+"-"))
			assert.Len(t, id, len(prefix)+1+21)
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		id := MustGenerate("page")
		assert.NotEmpty(t, id)
	})
}

func TestRevision(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		rev, err := Revision()
		require.NoError(t, err)
		require.Len(t, rev, revisionLength)
		for _, r := range rev {
			assert.True(t, strings.ContainsRune(revisionAlphabet, r), "unexpected rune %q", r)
		}
		assert.False(t, seen[rev])
		seen[rev] = true
	}
}
