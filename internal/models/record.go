package models

import "time"

// Record is one row of a content collection. The payload is an opaque
// key-value map; ID and timestamps are owned by the store.
type Record struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Flatten merges the payload with the store-owned fields, which is the shape
// clients see on the wire.
func (r *Record) Flatten() map[string]any {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID
	out["created_at"] = r.CreatedAt
	out["updated_at"] = r.UpdatedAt
	return out
}

// Clone returns a deep-enough copy for handing records across the store
// boundary: top-level keys are copied, nested values are shared.
func (r *Record) Clone() *Record {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	return &Record{
		ID:        r.ID,
		Data:      data,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ReservedFields are assigned by the store and stripped from client payloads.
var ReservedFields = []string{"id", "created_at", "updated_at"}

// StripReserved returns a copy of data without store-owned fields.
func StripReserved(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range ReservedFields {
		delete(out, k)
	}
	return out
}
