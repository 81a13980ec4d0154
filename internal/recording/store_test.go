package recording

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
)

func testMeta(gameID, startTime string) models.RecordingMetadata {
	return models.RecordingMetadata{
		GameID:          gameID,
		GameType:        "8ball",
		StartTime:       startTime,
		EndTime:         startTime,
		Players:         []string{"Alice", "Bob"},
		VideoResolution: "1280x720",
		VideoFPS:        30,
	}
}

func TestStoreMetadataRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	meta := testMeta("game_20260115_120000_aabbccdd", "2026-01-15T12:00:00Z")
	meta.Winner = "Alice"
	meta.FinalScore = []int{7, 4}

	_, err = store.CreateSessionDir(meta.GameID)
	require.NoError(t, err)
	require.NoError(t, store.WriteMetadata(meta))

	got, err := store.ReadMetadata(meta.GameID)
	require.NoError(t, err)
	assert.Equal(t, meta, *got)

	// No leftover temp file from the atomic write.
	_, err = os.Stat(store.MetadataPath(meta.GameID) + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStoreReadMetadataNotFound(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.ReadMetadata("game_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	older := testMeta("game_20260110_090000_11111111", "2026-01-10T09:00:00Z")
	newer := testMeta("game_20260115_120000_22222222", "2026-01-15T12:00:00Z")
	for _, meta := range []models.RecordingMetadata{older, newer} {
		_, err := store.CreateSessionDir(meta.GameID)
		require.NoError(t, err)
		require.NoError(t, store.WriteMetadata(meta))
	}

	// An in-flight session directory has no metadata record yet and must
	// not break the listing.
	_, err = store.CreateSessionDir("game_20260116_080000_33333333")
	require.NoError(t, err)

	// Corrupt records are skipped, not fatal.
	_, err = store.CreateSessionDir("game_20260116_090000_44444444")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.MetadataPath("game_20260116_090000_44444444"), []byte("{broken"), 0640))

	recordings, err := store.List()
	require.NoError(t, err)
	require.Len(t, recordings, 2)
	assert.Equal(t, newer.GameID, recordings[0].GameID)
	assert.Equal(t, older.GameID, recordings[1].GameID)
}

func TestStoreVideoHelpers(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	const gameID = "game_20260115_120000_aabbccdd"
	_, err = store.CreateSessionDir(gameID)
	require.NoError(t, err)

	assert.False(t, store.HasVideo(gameID))
	assert.Zero(t, store.VideoSizeMB(gameID))

	body := make([]byte, 2*1024*1024)
	require.NoError(t, os.WriteFile(store.VideoPath(gameID), body, 0640))

	assert.True(t, store.HasVideo(gameID))
	assert.InDelta(t, 2.0, store.VideoSizeMB(gameID), 0.01)
}

func TestStoreMissingThumbnails(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	withThumb := testMeta("game_20260110_090000_11111111", "2026-01-10T09:00:00Z")
	withoutThumb := testMeta("game_20260111_090000_22222222", "2026-01-11T09:00:00Z")
	noVideo := testMeta("game_20260112_090000_33333333", "2026-01-12T09:00:00Z")

	for _, meta := range []models.RecordingMetadata{withThumb, withoutThumb, noVideo} {
		_, err := store.CreateSessionDir(meta.GameID)
		require.NoError(t, err)
		require.NoError(t, store.WriteMetadata(meta))
	}
	require.NoError(t, os.WriteFile(store.VideoPath(withThumb.GameID), []byte("v"), 0640))
	require.NoError(t, os.WriteFile(store.ThumbnailPath(withThumb.GameID), []byte("t"), 0640))
	require.NoError(t, os.WriteFile(store.VideoPath(withoutThumb.GameID), []byte("v"), 0640))

	ids, err := store.MissingThumbnails()
	require.NoError(t, err)
	assert.Equal(t, []string{withoutThumb.GameID}, ids)
}

func TestStoreReadEventsMissingFile(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	events, err := store.ReadEvents("game_unknown")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNewStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "recordings")
	_, err := NewStore(root, nil)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
