package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio.admin/internal/schema"
	"portfolio.admin/internal/store"
)

func seedVerses(t *testing.T, s store.Store, refs ...string) []string {
	t.Helper()
	ids := make([]string, len(refs))
	for i, ref := range refs {
		rec, err := s.Create(context.Background(), schema.Verses, map[string]any{"reference": ref, "text": "..."})
		require.NoError(t, err)
		ids[i] = rec.ID
	}
	return ids
}

func newStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	return store.NewMemoryStore(schema.Names())
}

func TestPublicReads(t *testing.T) {
	s := newStore(t)
	r := NewReader(s)
	ctx := context.Background()

	_, err := s.Create(ctx, schema.Projects, map[string]any{"title": "X"})
	require.NoError(t, err)

	recs, err := r.List(ctx, schema.Projects)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = r.List(ctx, schema.VerseSettings)
	assert.ErrorIs(t, err, ErrNotPublic)
	_, err = r.Get(ctx, "users", "1")
	assert.ErrorIs(t, err, ErrNotPublic)
}

func TestVerseOfTheDayDailyRotation(t *testing.T) {
	s := newStore(t)
	ids := seedVerses(t, s, "John 1:1", "Psalm 23:1", "Romans 8:28")
	r := NewReader(s)

	day := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return day }
	first, err := r.VerseOfTheDay(context.Background())
	require.NoError(t, err)

	r.now = func() time.Time { return day.Add(10 * time.Hour) }
	same, err := r.VerseOfTheDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, same.ID, "stable within a day")

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		r.now = func() time.Time { return day.AddDate(0, 0, i) }
		v, err := r.VerseOfTheDay(context.Background())
		require.NoError(t, err)
		seen[v.ID] = true
	}
	assert.Len(t, seen, len(ids), "three consecutive days cover three verses")
}

func TestVerseOfTheDayFixedAndInactive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ids := seedVerses(t, s, "A", "B")

	_, err := s.Update(ctx, schema.Verses, ids[0], map[string]any{"active": false})
	require.NoError(t, err)

	r := NewReader(s)
	for i := 0; i < 5; i++ {
		r.now = func() time.Time { return time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC) }
		v, err := r.VerseOfTheDay(ctx)
		require.NoError(t, err)
		assert.Equal(t, ids[1], v.ID)
	}

	_, err = s.Update(ctx, schema.Verses, ids[0], map[string]any{"active": true})
	require.NoError(t, err)
	_, err = s.Create(ctx, schema.VerseSettings, map[string]any{"mode": ModeFixed, "fixed_verse_id": ids[0]})
	require.NoError(t, err)

	v, err := r.VerseOfTheDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[0], v.ID)
}

func TestVerseOfTheDayNone(t *testing.T) {
	s := newStore(t)
	r := NewReader(s)

	_, err := r.VerseOfTheDay(context.Background())
	assert.ErrorIs(t, err, ErrNoVerse)

	seedVerses(t, s, "A")
	_, err = s.Create(context.Background(), schema.VerseSettings, map[string]any{"enabled": false})
	require.NoError(t, err)
	_, err = r.VerseOfTheDay(context.Background())
	assert.ErrorIs(t, err, ErrNoVerse)
}
