package recording

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
)

// fakeSink counts writes and optionally fails them. When createFile is set,
// opening the sink touches the output path so the stop path sees a video.
type fakeSink struct {
	writes   int
	failWith error
	closed   bool
}

func (f *fakeSink) Write(frame []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.writes++
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

type fakeOpener struct {
	sink       *fakeSink
	createFile bool
	failWith   error
}

func (f *fakeOpener) open(path string, width, height, fps int) (FrameSink, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.createFile {
		if err := os.WriteFile(path, []byte("mp4"), 0640); err != nil {
			return nil, err
		}
	}
	return f.sink, nil
}

type fakeThumbnailer struct {
	calls int
	err   error
}

func (f *fakeThumbnailer) Extract(ctx context.Context, videoPath, thumbnailPath string) error {
	f.calls++
	return f.err
}

type fakeIndex struct {
	rows []models.RecordingRow
	err  error
}

func (f *fakeIndex) Upsert(ctx context.Context, row models.RecordingRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func newTestManager(t *testing.T, opener *fakeOpener) *Manager {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return NewManager(store, opener.open, nil)
}

func startOpts() StartOptions {
	return StartOptions{
		GameType: "8ball",
		Players:  []string{"Alice", "Bob"},
		Width:    1280,
		Height:   720,
		FPS:      30,
	}
}

func TestStartRejectsConcurrentSession(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}, createFile: true})
	ctx := context.Background()

	id1, err := m.Start(ctx, startOpts())
	require.NoError(t, err)
	require.True(t, m.IsRecording())

	_, err = m.Start(ctx, startOpts())
	assert.ErrorIs(t, err, ErrAlreadyRecording)

	current, ok := m.CurrentGameID()
	require.True(t, ok)
	assert.Equal(t, id1, current)

	_, err = m.Stop(ctx, StopOptions{})
	require.NoError(t, err)
	assert.False(t, m.IsRecording())

	id2, err := m.Start(ctx, startOpts())
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestStopWithoutSession(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}})

	_, err := m.Stop(context.Background(), StopOptions{})
	assert.ErrorIs(t, err, ErrNoActiveRecording)

	entries, err := os.ReadDir(m.Store().Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartSinkOpenFailure(t *testing.T) {
	boom := errors.New("encoder unavailable")
	m := newTestManager(t, &fakeOpener{failWith: boom})

	_, err := m.Start(context.Background(), startOpts())
	var openErr *SinkOpenError
	require.ErrorAs(t, err, &openErr)
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.IsRecording())
}

func TestFrameCountMatchesAcceptedWrites(t *testing.T) {
	sink := &fakeSink{}
	m := newTestManager(t, &fakeOpener{sink: sink, createFile: true})
	ctx := context.Background()

	assert.False(t, m.WriteFrame([]byte("early")), "no session yet")

	_, err := m.Start(ctx, startOpts())
	require.NoError(t, err)

	frame := []byte("frame")
	for i := 0; i < 3; i++ {
		assert.True(t, m.WriteFrame(frame))
	}

	// A failed write drops that frame only; the session keeps going.
	sink.failWith = errors.New("pipe broken")
	assert.False(t, m.WriteFrame(frame))
	sink.failWith = nil
	assert.True(t, m.WriteFrame(frame))

	summary, err := m.Stop(ctx, StopOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.FrameCount)
	assert.True(t, sink.closed)
}

func TestEventTimelineOrdering(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}, createFile: true})
	ctx := context.Background()

	gameID, err := m.Start(ctx, startOpts())
	require.NoError(t, err)

	m.LogEvent("shot", map[string]interface{}{"player": "Alice"})
	m.LogEvent("foul", map[string]interface{}{"player": "Bob"})

	_, err = m.Stop(ctx, StopOptions{Winner: "Alice", FinalScore: []int{5, 3}, TotalRounds: 8})
	require.NoError(t, err)

	events, err := m.GetEvents(gameID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "game_start", events[0].Event)
	assert.Equal(t, "shot", events[1].Event)
	assert.Equal(t, "foul", events[2].Event)
	assert.Equal(t, "game_end", events[3].Event)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Timestamp, events[i-1].Timestamp)
	}
}

func TestLogEventWithoutSession(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}})
	m.LogEvent("shot", nil) // must not panic or create files

	entries, err := os.ReadDir(m.Store().Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStopFinalizesMetadata(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}, createFile: true})
	thumbs := &fakeThumbnailer{}
	idx := &fakeIndex{}
	m.SetThumbnailer(thumbs)
	m.SetIndex(idx)
	ctx := context.Background()

	started := time.Now()
	gameID, err := m.Start(ctx, startOpts())
	require.NoError(t, err)

	summary, err := m.Stop(ctx, StopOptions{Winner: "Bob", FinalScore: []int{3, 7}, TotalRounds: 10})
	elapsed := time.Since(started).Seconds()
	require.NoError(t, err)
	assert.Equal(t, gameID, summary.GameID)
	assert.GreaterOrEqual(t, summary.Duration, 0.0)
	assert.LessOrEqual(t, summary.Duration, elapsed+1.0)

	meta, err := m.GetMetadata(gameID)
	require.NoError(t, err)
	assert.Equal(t, "8ball", meta.GameType)
	assert.Equal(t, []string{"Alice", "Bob"}, meta.Players)
	assert.Equal(t, "Bob", meta.Winner)
	assert.Equal(t, []int{3, 7}, meta.FinalScore)
	assert.Equal(t, 10, meta.TotalRounds)
	assert.Equal(t, "1280x720", meta.VideoResolution)
	assert.Equal(t, 30, meta.VideoFPS)
	assert.NotEmpty(t, meta.StartTime)
	assert.NotEmpty(t, meta.EndTime)

	assert.Equal(t, 1, thumbs.calls)
	require.Len(t, idx.rows, 1)
	assert.Equal(t, gameID, idx.rows[0].GameID)
}

func TestStopWithoutVideoSkipsThumbnail(t *testing.T) {
	// Opener never materializes the video file, e.g. the encoder died
	// before producing output.
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}})
	thumbs := &fakeThumbnailer{}
	m.SetThumbnailer(thumbs)
	ctx := context.Background()

	gameID, err := m.Start(ctx, startOpts())
	require.NoError(t, err)

	summary, err := m.Stop(ctx, StopOptions{})
	require.NoError(t, err)
	assert.Zero(t, summary.FileSizeMB)
	assert.Zero(t, thumbs.calls)

	// Metadata is still written; the session is queryable.
	_, err = m.GetMetadata(gameID)
	require.NoError(t, err)
}

func TestStopSurvivesSecondaryFailures(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}, createFile: true})
	m.SetThumbnailer(&fakeThumbnailer{err: errors.New("no decodable frame")})
	m.SetIndex(&fakeIndex{err: errors.New("db down")})
	ctx := context.Background()

	gameID, err := m.Start(ctx, startOpts())
	require.NoError(t, err)

	_, err = m.Stop(ctx, StopOptions{})
	require.NoError(t, err)
	assert.False(t, m.IsRecording())

	meta, err := m.GetMetadata(gameID)
	require.NoError(t, err)
	assert.Equal(t, gameID, meta.GameID)
}

func TestSequentialSessionsBothListed(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}, createFile: true})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		id, err := m.Start(ctx, startOpts())
		require.NoError(t, err)
		_, err = m.Stop(ctx, StopOptions{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	recordings, err := m.ListRecordings()
	require.NoError(t, err)
	require.Len(t, recordings, 2)
	listed := []string{recordings[0].GameID, recordings[1].GameID}
	assert.ElementsMatch(t, ids, listed)
}

func TestGameIDFormat(t *testing.T) {
	m := newTestManager(t, &fakeOpener{sink: &fakeSink{}, createFile: true})
	ctx := context.Background()

	id, err := m.Start(ctx, startOpts())
	require.NoError(t, err)
	defer m.Stop(ctx, StopOptions{})

	assert.Regexp(t, `^game_\d{8}_\d{6}_[0-9a-f]{8}$`, id)
}
