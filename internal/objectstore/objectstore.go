// Package objectstore persists generated assets and returns their public URLs.
package objectstore

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// Store writes objects under a key and reports the URL the public site
// should use to fetch them.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Object is a stored blob.
type Object struct {
	ContentType string
	Body        []byte
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
