package channels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Channel {
	return []Channel{
		{Name: "Rai 1", Category: "Generalist", Link: "https://s.example.com/rai1.m3u8", FreeToAir: true},
		{Name: "Sky Sport: Extra", Category: "Sport", Link: "https://s.example.com/sse.m3u8"},
		{Name: "Sky Cinema", Category: "Movies", Link: "https://s.example.com/sc.m3u8"},
		{Name: "", Category: "Sport"}, // nameless entries are dropped
	}
}

func TestReplaceAndGet(t *testing.T) {
	r := NewRegistry("", "", false)
	r.Replace(sample())

	assert.Equal(t, 3, r.Len())

	ch, ok := r.Get("Rai 1")
	require.True(t, ok)
	assert.True(t, ch.FreeToAir)

	// sanitized route-segment form resolves to the same channel
	ch, ok = r.Get("Sky_Sport_Extra")
	require.True(t, ok)
	assert.Equal(t, "Sky Sport: Extra", ch.Name)

	// an unsanitized lookup gets sanitized before the fallback index
	ch, ok = r.Get("Sky Sport: Extra")
	require.True(t, ok)
	assert.Equal(t, "Sky Sport: Extra", ch.Name)

	_, ok = r.Get("No Such Channel")
	assert.False(t, ok)
}

func TestIncludeFilter(t *testing.T) {
	r := NewRegistry("^Sport$", "", false)
	r.Replace(sample())

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("Rai 1")
	assert.False(t, ok)
	_, ok = r.Get("Sky Sport: Extra")
	assert.True(t, ok)
}

func TestExcludeFilter(t *testing.T) {
	r := NewRegistry("", "Movies", false)
	r.Replace(sample())

	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("Sky Cinema")
	assert.False(t, ok)
}

func TestInvalidPatternIgnored(t *testing.T) {
	r := NewRegistry("([unclosed", "", false)
	r.Replace(sample())
	assert.Equal(t, 3, r.Len(), "an invalid filter degrades to no filter")
}

func TestAllPreservesFileOrder(t *testing.T) {
	r := NewRegistry("", "", false)
	r.Replace(sample())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "Rai 1", all[0].Name)
	assert.Equal(t, "Sky Sport: Extra", all[1].Name)
	assert.Equal(t, "Sky Cinema", all[2].Name)
}

func TestCategories(t *testing.T) {
	r := NewRegistry("", "", false)
	r.Replace(sample())
	assert.Equal(t, []string{"Generalist", "Movies", "Sport"}, r.Categories())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.json")
	content := `[
  {"name": "Rai 1", "category": "Generalist", "freeToAir": true, "link": "https://s.example.com/rai1.m3u8"},
  {"name": "Sky Uno", "category": "Entertainment", "link": "https://s.example.com/skyuno.m3u8", "linkHD": "https://s.example.com/skyuno-hd.m3u8"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := NewRegistry("", "", false)
	require.NoError(t, r.LoadFile(path))
	assert.Equal(t, 2, r.Len())

	ch, ok := r.Get("Sky Uno")
	require.True(t, ok)
	assert.Equal(t, "https://s.example.com/skyuno-hd.m3u8", ch.LinkHD)
}

func TestLoadFileMissing(t *testing.T) {
	r := NewRegistry("", "", false)
	assert.NoError(t, r.LoadFile(filepath.Join(t.TempDir(), "absent.json")), "a missing file only disables live TV")
	assert.Equal(t, 0, r.Len())
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.json")
	require.NoError(t, os.WriteFile(path, []byte("{not an array"), 0644))

	r := NewRegistry("", "", false)
	assert.Error(t, r.LoadFile(path))
}
