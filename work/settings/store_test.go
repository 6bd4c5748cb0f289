package settings

import (
	"fmt"
	"sync"
	"testing"

	"streamres/work/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLastWriteWins(t *testing.T) {
	s := NewStore()
	s.Merge(types.Settings{"proxyUrl": "https://a.example.com", "animeLanguage": "en"})
	s.Merge(types.Settings{"proxyUrl": "https://b.example.com"})

	snap := s.Snapshot()
	assert.Equal(t, "https://b.example.com", snap["proxyUrl"])
	assert.Equal(t, "en", snap["animeLanguage"], "untouched keys survive later merges")
	assert.Equal(t, 2, s.Len())
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewStore()
	s.Merge(types.Settings{"key": "v1"})

	snap := s.Snapshot()
	s.Merge(types.Settings{"key": "v2"})

	assert.Equal(t, "v1", snap["key"], "snapshot keeps values from its moment")
	assert.Equal(t, "v2", s.Snapshot()["key"])
}

func TestGet(t *testing.T) {
	s := NewStore()
	s.Merge(types.Settings{"proxyPassword": "pw"})

	v, ok := s.Get("proxyPassword")
	require.True(t, ok)
	assert.Equal(t, "pw", v)

	_, ok = s.Get("absent")
	assert.False(t, ok)
}

func TestConcurrentMerges(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Merge(types.Settings{
				fmt.Sprintf("key%d", n): "v",
				"shared":                fmt.Sprintf("writer%d", n),
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 33, s.Len())
	_, ok := s.Get("shared")
	assert.True(t, ok)
}
