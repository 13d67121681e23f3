// Package resolve converts image URLs in a payload into the content
// service's numeric asset identifiers. The write API expects IDs, not
// URLs, for relation fields.
package resolve

import (
	"context"
	"log/slog"

	"github.com/halvard/raido/internal/contentservice"
	"github.com/halvard/raido/internal/imageref"
)

// Resolver performs best-effort URL→ID resolution.
type Resolver struct {
	api    contentservice.API
	logger *slog.Logger
}

// New creates a Resolver. logger must not be nil.
func New(api contentservice.API, logger *slog.Logger) *Resolver {
	return &Resolver{api: api, logger: logger}
}

// IDs recursively walks a JSON-like value and replaces every image-looking
// string with the matching asset's numeric id, when the service knows the
// URL. A lookup failure for one field never aborts its siblings: the
// original string is kept and the failure logged; the service will reject
// a stray URL in an ID field with a clear downstream error.
func (r *Resolver) IDs(ctx context.Context, v any) any {
	switch vv := v.(type) {
	case string:
		return r.resolveString(ctx, vv)
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = r.IDs(ctx, item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = r.IDs(ctx, item)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) resolveString(ctx context.Context, s string) any {
	if !imageref.LooksLikeImage(s) {
		return s
	}
	asset, err := r.api.FindAssetByURL(ctx, s)
	if err != nil {
		r.logger.Warn("asset id lookup failed",
			slog.String("url", s),
			slog.String("error", err.Error()))
		return s
	}
	if asset == nil {
		return s
	}
	return asset.ID
}
