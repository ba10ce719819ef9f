// Package content serves the public, unauthenticated side of the site:
// read-only access to public collections and the verse of the day.
package content

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"portfolio.admin/internal/models"
	"portfolio.admin/internal/schema"
	"portfolio.admin/internal/store"
)

var (
	// ErrNotPublic is returned for collections that are not exposed; callers
	// should not distinguish it from an unknown collection.
	ErrNotPublic = errors.New("collection not public")
	ErrNoVerse   = errors.New("no verse available")
)

const (
	ModeDaily  = "daily"
	ModeRandom = "random"
	ModeFixed  = "fixed"
)

type Reader struct {
	store store.Store
	now   func() time.Time
}

func NewReader(s store.Store) *Reader {
	return &Reader{store: s, now: time.Now}
}

func (r *Reader) List(ctx context.Context, table string) ([]*models.Record, error) {
	if !public(table) {
		return nil, ErrNotPublic
	}
	return r.store.List(ctx, table)
}

func (r *Reader) Get(ctx context.Context, table, id string) (*models.Record, error) {
	if !public(table) {
		return nil, ErrNotPublic
	}
	return r.store.Get(ctx, table, id)
}

func public(table string) bool {
	c, ok := schema.Lookup(table)
	return ok && c.Public
}

type verseSettings struct {
	mode    string
	fixedID string
	enabled bool
}

func (r *Reader) settings(ctx context.Context) (verseSettings, error) {
	s := verseSettings{mode: ModeDaily, enabled: true}

	recs, err := r.store.List(ctx, schema.VerseSettings)
	if err != nil || len(recs) == 0 {
		return s, err
	}
	data := recs[0].Data
	if v, ok := data["mode"].(string); ok && v != "" {
		s.mode = v
	}
	if v, ok := data["fixed_verse_id"].(string); ok {
		s.fixedID = v
	}
	if v, ok := data["enabled"].(bool); ok {
		s.enabled = v
	}
	return s, nil
}

// VerseOfTheDay picks the verse to show. In daily mode the choice is
// stable for a UTC calendar day and rotates through active verses in
// creation order.
func (r *Reader) VerseOfTheDay(ctx context.Context) (*models.Record, error) {
	settings, err := r.settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.enabled {
		return nil, ErrNoVerse
	}

	recs, err := r.store.List(ctx, schema.Verses)
	if err != nil {
		return nil, err
	}
	active := make([]*models.Record, 0, len(recs))
	for _, rec := range recs {
		if on, ok := rec.Data["active"].(bool); ok && !on {
			continue
		}
		active = append(active, rec)
	}
	if len(active) == 0 {
		return nil, ErrNoVerse
	}
	// List is newest first; rotate oldest first so new verses append.
	slices.Reverse(active)

	switch settings.mode {
	case ModeFixed:
		for _, rec := range active {
			if rec.ID == settings.fixedID {
				return rec, nil
			}
		}
	case ModeRandom:
		return active[rand.IntN(len(active))], nil
	}

	day := r.now().UTC().Unix() / int64(24*time.Hour/time.Second)
	return active[int(day%int64(len(active)))], nil
}
