package mediaid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMovie(t *testing.T) {
	id, err := Parse("tt0111161")
	require.NoError(t, err)
	assert.Equal(t, KindIMDB, id.Kind)
	assert.Equal(t, "tt0111161", id.Value)
	assert.Nil(t, id.Season)
	assert.Nil(t, id.Episode)
}

func TestParseSeries(t *testing.T) {
	id, err := Parse("tt0903747:5:14")
	require.NoError(t, err)
	assert.Equal(t, KindIMDB, id.Kind)
	assert.Equal(t, "tt0903747", id.Value)
	require.NotNil(t, id.Season)
	require.NotNil(t, id.Episode)
	assert.Equal(t, 5, *id.Season)
	assert.Equal(t, 14, *id.Episode)
}

func TestParseTMDB(t *testing.T) {
	id, err := Parse("tmdb:603:1:2")
	require.NoError(t, err)
	assert.Equal(t, KindTMDB, id.Kind)
	assert.Equal(t, "603", id.Value)
	assert.False(t, id.IsAnime())
}

func TestParseAnimeAbsoluteEpisode(t *testing.T) {
	id, err := Parse("kitsu:44042:5")
	require.NoError(t, err)
	assert.Equal(t, KindKitsu, id.Kind)
	assert.Equal(t, "44042", id.Value)
	assert.Nil(t, id.Season, "2-segment form carries no season")
	require.NotNil(t, id.Episode)
	assert.Equal(t, 5, *id.Episode)
	assert.True(t, id.IsAnime())
}

func TestParseMAL(t *testing.T) {
	id, err := Parse("mal:5114")
	require.NoError(t, err)
	assert.Equal(t, KindMAL, id.Kind)
	assert.True(t, id.IsAnime())
}

func TestParseTVKeepsColons(t *testing.T) {
	id, err := Parse("tv:Sky Sport: Extra")
	require.NoError(t, err)
	assert.Equal(t, KindTV, id.Kind)
	assert.Equal(t, "Sky Sport: Extra", id.Value, "channel names are never split on colons")
	assert.Nil(t, id.Season)
	assert.Nil(t, id.Episode)
}

func TestParseErrors(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"unknown:123",
		"tmdb:",
		"tmdb:603:abc",
		"tt1:1:2:3",
		"kitsu:1:-2",
		"tmdb:603::4",
	} {
		_, err := Parse(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"tt0111161",
		"tt0903747:5:14",
		"tmdb:603",
		"kitsu:44042:5",
		"mal:5114:1:12",
		"tv:Rai 1",
	} {
		id, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "imdb", KindIMDB.String())
	assert.Equal(t, "tv", KindTV.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
