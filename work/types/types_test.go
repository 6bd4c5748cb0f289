package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsGet(t *testing.T) {
	s := Settings{"a": "1", "empty": ""}
	assert.Equal(t, "1", s.Get("a", "fb"))
	assert.Equal(t, "fb", s.Get("missing", "fb"))
	assert.Equal(t, "fb", s.Get("empty", "fb"), "empty values fall back like absent ones")
}

func TestSettingsGetBool(t *testing.T) {
	s := Settings{"t": "true", "f": "false", "on": "on", "off": "off", "junk": "maybe"}
	assert.True(t, s.GetBool("t", false))
	assert.False(t, s.GetBool("f", true))
	assert.True(t, s.GetBool("on", false))
	assert.False(t, s.GetBool("off", true))
	assert.True(t, s.GetBool("junk", true), "unparseable keeps the fallback")
	assert.False(t, s.GetBool("missing", false))
}

func TestToEntriesPreservesOrder(t *testing.T) {
	entries := ToEntries([]StreamCandidate{
		{URL: "https://a.example.com", Title: "1080p", SourceLabel: "CineStream"},
		{URL: "https://b.example.com", Title: "720p"},
	})
	assert.Len(t, entries, 2)
	assert.Equal(t, "CineStream", entries[0].Name)
	assert.Equal(t, "https://b.example.com", entries[1].URL)
}
