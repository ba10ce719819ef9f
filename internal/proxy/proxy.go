// Package proxy executes privileged CRUD calls from the admin dashboard
// against the allow-listed collections.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"portfolio.admin/internal/auth"
	"portfolio.admin/internal/schema"
	"portfolio.admin/internal/store"
)

type Action string

const (
	ActionList   Action = "list"
	ActionGet    Action = "get"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) valid() bool {
	switch a {
	case ActionList, ActionGet, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

func (a Action) needsID() bool {
	return a == ActionGet || a == ActionUpdate || a == ActionDelete
}

func (a Action) needsData() bool {
	return a == ActionCreate || a == ActionUpdate
}

var (
	ErrInvalidResource = errors.New("invalid table")
	ErrInvalidAction   = errors.New("invalid action")
	ErrValidation      = schema.ErrValidation
	ErrNotFound        = store.ErrNotFound
)

// Request is one proxied call.
type Request struct {
	Action      Action
	Table       string
	ID          string
	Data        map[string]any
	Credentials auth.Credentials
}

// Authorizer resolves caller credentials. *auth.Verifier implements it.
type Authorizer interface {
	Authorize(ctx context.Context, creds auth.Credentials) (auth.Role, error)
}

// Proxy holds the service-level store handle the browser never sees.
type Proxy struct {
	auth   Authorizer
	store  store.Store
	logger *slog.Logger
}

func New(a Authorizer, s store.Store, logger *slog.Logger) *Proxy {
	return &Proxy{
		auth:   a,
		store:  s,
		logger: logger.With("component", "proxy"),
	}
}

// Execute authorizes the caller on every call, then dispatches. The result
// is a flattened record, a slice of them, or nil for delete.
func (p *Proxy) Execute(ctx context.Context, req Request) (any, error) {
	log := p.logger.With("action", string(req.Action), "table", req.Table)
	if req.ID != "" {
		log = log.With("id", req.ID)
	}

	role, err := p.auth.Authorize(ctx, req.Credentials)
	if err != nil {
		log.WarnContext(ctx, "data proxy call rejected", "reason", err)
		return nil, err
	}
	if role != auth.RoleOwner {
		log.WarnContext(ctx, "data proxy call rejected", "reason", "role", "role", role.String())
		return nil, auth.ErrUnauthorized
	}

	coll, ok := schema.Lookup(req.Table)
	if !ok {
		log.WarnContext(ctx, "data proxy call rejected", "reason", ErrInvalidResource)
		return nil, fmt.Errorf("%w: %q", ErrInvalidResource, req.Table)
	}
	if !req.Action.valid() {
		log.WarnContext(ctx, "data proxy call rejected", "reason", ErrInvalidAction)
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if req.Action.needsID() && req.ID == "" {
		return nil, fmt.Errorf("%w: id is required for %s", ErrValidation, req.Action)
	}
	if req.Action.needsData() {
		if req.Data == nil {
			return nil, fmt.Errorf("%w: data is required for %s", ErrValidation, req.Action)
		}
		if err := coll.Validate(req.Data, req.Action == ActionUpdate); err != nil {
			log.WarnContext(ctx, "data proxy payload rejected", "error", err)
			return nil, err
		}
		log = log.With("keys", payloadKeys(req.Data))
	}

	result, err := p.dispatch(ctx, req)
	if err != nil {
		log.ErrorContext(ctx, "data proxy call failed", "error", err)
		return nil, err
	}
	log.InfoContext(ctx, "data proxy call")
	return result, nil
}

func (p *Proxy) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Action {
	case ActionList:
		recs, err := p.store.List(ctx, req.Table)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(recs))
		for i, r := range recs {
			out[i] = r.Flatten()
		}
		return out, nil

	case ActionGet:
		rec, err := p.store.Get(ctx, req.Table, req.ID)
		if err != nil {
			return nil, err
		}
		return rec.Flatten(), nil

	case ActionCreate:
		rec, err := p.store.Create(ctx, req.Table, req.Data)
		if err != nil {
			return nil, err
		}
		return rec.Flatten(), nil

	case ActionUpdate:
		rec, err := p.store.Update(ctx, req.Table, req.ID, req.Data)
		if err != nil {
			return nil, err
		}
		return rec.Flatten(), nil

	case ActionDelete:
		return nil, p.store.Delete(ctx, req.Table, req.ID)
	}
	return nil, ErrInvalidAction
}

// payloadKeys lists field names only; values can hold personal data and are
// never logged.
func payloadKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
