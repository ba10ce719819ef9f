// Package generate forwards copy and thumbnail requests from the admin
// dashboard to an AI completion service.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"portfolio.admin/internal/auth"
	"portfolio.admin/internal/models"
	"portfolio.admin/internal/objectstore"
	"portfolio.admin/internal/ratelimit"
)

const (
	MaxContentLength = 10000
	MaxTitleLength   = 200
	maxCategory      = 100

	imageLimitKey = "image"
	thumbnailDir  = "thumbnails"
)

var (
	ErrNotConfigured       = errors.New("ai api key not configured")
	ErrInvalidAction       = errors.New("invalid action")
	ErrValidation          = errors.New("validation failed")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUpstreamRateLimited = errors.New("upstream rate limit exceeded")
	ErrQuotaExhausted      = errors.New("upstream quota exhausted")
	ErrUpstream            = errors.New("upstream failure")
)

// Authorizer resolves caller credentials. *auth.Verifier implements it.
type Authorizer interface {
	Authorize(ctx context.Context, creds auth.Credentials) (auth.Role, error)
}

type Options struct {
	Auth       Authorizer
	Completer  Completer // nil when no API key is configured
	Objects    objectstore.Store
	Limiter    ratelimit.Limiter // nil disables the budget
	TextModel  string
	ImageModel string
	Logger     *slog.Logger
}

type Gateway struct {
	auth       Authorizer
	completer  Completer
	objects    objectstore.Store
	limiter    ratelimit.Limiter
	textModel  string
	imageModel string
	logger     *slog.Logger
}

func NewGateway(opts Options) *Gateway {
	return &Gateway{
		auth:       opts.Auth,
		completer:  opts.Completer,
		objects:    opts.Objects,
		limiter:    opts.Limiter,
		textModel:  opts.TextModel,
		imageModel: opts.ImageModel,
		logger:     opts.Logger.With("component", "generate"),
	}
}

// GenerateText rewrites or drafts copy for one of the known actions.
func (g *Gateway) GenerateText(ctx context.Context, creds auth.Credentials, req models.TextRequest) (*models.TextResponse, error) {
	if err := g.authorize(ctx, creds); err != nil {
		return nil, err
	}
	if g.completer == nil {
		g.logger.ErrorContext(ctx, "text generation attempted without api key")
		return nil, ErrNotConfigured
	}

	if _, ok := textActions[req.Action]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if n := utf8.RuneCountInString(req.Content); n > MaxContentLength {
		return nil, fmt.Errorf("%w: content is %d characters, limit is %d", ErrValidation, n, MaxContentLength)
	}

	if err := g.allow(ctx, req.Action); err != nil {
		return nil, err
	}

	resp, err := g.completer.Complete(ctx, CompletionRequest{
		Model:    g.textModel,
		Messages: textMessages(req.Action, req.Content, req.Context),
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "text generation failed", "action", req.Action, "error", err)
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		g.logger.ErrorContext(ctx, "text generation returned no content", "action", req.Action)
		return nil, fmt.Errorf("%w: empty completion", ErrUpstream)
	}

	g.logger.InfoContext(ctx, "text generated", "action", req.Action, "content_length", utf8.RuneCountInString(req.Content))
	return &models.TextResponse{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

// GenerateImage renders a thumbnail, stores it and returns its public URL.
func (g *Gateway) GenerateImage(ctx context.Context, creds auth.Credentials, req models.ImageRequest) (*models.ImageResponse, error) {
	if err := g.authorize(ctx, creds); err != nil {
		return nil, err
	}
	if g.completer == nil {
		g.logger.ErrorContext(ctx, "image generation attempted without api key")
		return nil, ErrNotConfigured
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}
	category := strings.TrimSpace(req.Category)
	if utf8.RuneCountInString(category) > maxCategory {
		return nil, fmt.Errorf("%w: category exceeds %d characters", ErrValidation, maxCategory)
	}

	style := req.Style
	if style == "" {
		style = defaultStyle
	}
	if _, ok := imageStyles[style]; !ok {
		return nil, fmt.Errorf("%w: style %q", ErrValidation, style)
	}
	kind := req.Type
	if kind == "" {
		kind = defaultType
	}
	if _, ok := imageTypes[kind]; !ok {
		return nil, fmt.Errorf("%w: type %q", ErrValidation, kind)
	}

	if err := g.allow(ctx, imageLimitKey); err != nil {
		return nil, err
	}

	resp, err := g.completer.Complete(ctx, CompletionRequest{
		Model:      g.imageModel,
		Messages:   []Message{{Role: "user", Content: imagePrompt(title, category, style, kind)}},
		Modalities: []string{"image", "text"},
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "image generation failed", "style", style, "type", kind, "error", err)
		return nil, err
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Images) == 0 {
		g.logger.ErrorContext(ctx, "image generation returned no image")
		return nil, fmt.Errorf("%w: no image returned", ErrUpstream)
	}

	contentType, data, err := decodeDataURL(resp.Choices[0].Message.Images[0].ImageURL.URL)
	if err != nil {
		g.logger.ErrorContext(ctx, "image generation returned unusable image", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	key := fmt.Sprintf("%s/%s.%s", thumbnailDir, uuid.NewString(), imageExtensions[contentType])
	url, err := g.objects.Put(ctx, key, contentType, data)
	if err != nil {
		g.logger.ErrorContext(ctx, "storing thumbnail failed", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	g.logger.InfoContext(ctx, "thumbnail generated", "key", key, "bytes", len(data))
	return &models.ImageResponse{URL: url}, nil
}

func (g *Gateway) authorize(ctx context.Context, creds auth.Credentials) error {
	role, err := g.auth.Authorize(ctx, creds)
	if err != nil {
		return err
	}
	if role != auth.RoleOwner {
		return auth.ErrUnauthorized
	}
	return nil
}

func (g *Gateway) allow(ctx context.Context, key string) error {
	if g.limiter == nil {
		return nil
	}
	ok, err := g.limiter.Allow(ctx, key)
	if err != nil {
		return fmt.Errorf("checking rate limit: %w", err)
	}
	if !ok {
		g.logger.WarnContext(ctx, "generation rate limited", "key", key)
		return ErrRateLimited
	}
	return nil
}
