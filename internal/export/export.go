// Package export orchestrates the content-export pipeline: split, scan,
// upload, rewrite, persist, map, resolve, submit.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/halvard/raido/internal/apperr"
	"github.com/halvard/raido/internal/checksum"
	"github.com/halvard/raido/internal/contentservice"
	"github.com/halvard/raido/internal/exportlog"
	"github.com/halvard/raido/internal/frontmatter"
	"github.com/halvard/raido/internal/imageref"
	"github.com/halvard/raido/internal/resolve"
	"github.com/halvard/raido/internal/rewrite"
	"github.com/halvard/raido/internal/storage"
	"github.com/halvard/raido/internal/uploader"
)

// Phase names one step of the export pipeline, for logs and events.
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseReading    Phase = "reading"
	PhaseScanning   Phase = "scanning"
	PhaseUploading  Phase = "uploading"
	PhaseRewriting  Phase = "rewriting"
	PhasePersisting Phase = "persisting"
	PhaseMapping    Phase = "mapping"
	PhaseResolving  Phase = "resolving_ids"
	PhaseSubmitting Phase = "submitting"
	PhaseDone       Phase = "done"
)

// MetadataGenerator fills in metadata fields the document lacks. It is an
// opaque collaborator (typically LLM-backed); this module ships no
// implementation. Generated values feed the payload only and are never
// written back to the document.
type MetadataGenerator interface {
	Generate(ctx context.Context, body string, missing []string) (map[string]any, error)
}

// Options tunes one export call.
type Options struct {
	// Force exports even when the export log says the content is unchanged.
	Force bool
}

// Result summarizes one completed export.
type Result struct {
	Path     string           `json:"path"`
	Route    string           `json:"route"`
	EntryID  int              `json:"entry_id,omitempty"`
	Skipped  bool             `json:"skipped,omitempty"`
	Changed  bool             `json:"changed,omitempty"`
	Uploaded int              `json:"uploaded"`
	Failed   map[string]error `json:"-"`
	Checksum string           `json:"checksum,omitempty"`
}

// FailedPaths returns the paths whose upload failed, sorted.
func (r *Result) FailedPaths() []string {
	out := make([]string, 0, len(r.Failed))
	for p := range r.Failed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Exporter runs exports against one vault and one content service.
type Exporter struct {
	store  storage.Provider
	api    contentservice.API
	up     *uploader.Uploader
	res    *resolve.Resolver
	logger *slog.Logger

	log  exportlog.Log     // optional
	meta MetadataGenerator // optional

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option is a functional option for configuring an Exporter.
type Option func(*Exporter)

// WithLog enables the export ledger (skip-unchanged, history).
func WithLog(log exportlog.Log) Option {
	return func(e *Exporter) { e.log = log }
}

// WithMetadataGenerator enables payload-side metadata generation for
// missing mapped fields.
func WithMetadataGenerator(gen MetadataGenerator) Option {
	return func(e *Exporter) { e.meta = gen }
}

// New creates an Exporter. logger must not be nil.
func New(store storage.Provider, api contentservice.API, up *uploader.Uploader, res *resolve.Resolver, logger *slog.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		store:    store,
		api:      api,
		up:       up,
		res:      res,
		logger:   logger,
		inflight: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export runs the full pipeline for one document against one route.
// Steps are strictly sequential; only per-image upload failures are
// non-fatal (recorded on the Result). Concurrent exports of the same
// document are rejected.
func (e *Exporter) Export(ctx context.Context, path string, route Route, opts Options) (*Result, error) {
	// Validating.
	if err := route.Validate(); err != nil {
		return nil, &apperr.ConfigError{Msg: fmt.Sprintf("route %q: %v", route.Name, err)}
	}

	if err := e.acquire(path); err != nil {
		return nil, err
	}
	defer e.release(path)

	res := &Result{Path: path, Route: route.Name}
	log := e.logger.With(slog.String("path", path), slog.String("route", route.Name))

	// Reading.
	data, err := e.store.Read(path)
	if err != nil {
		return nil, fmt.Errorf("export: read: %w", err)
	}
	res.Checksum = checksum.Sum(data)

	if !opts.Force && e.log != nil {
		last, err := e.log.LastSuccess(path, route.Name)
		if err != nil {
			log.Warn("export log lookup failed", slog.String("error", err.Error()))
		} else if last != nil && last.Checksum == res.Checksum {
			log.Info("content unchanged, skipping", slog.String("phase", string(PhaseReading)))
			res.Skipped = true
			res.EntryID = last.EntryID
			return res, nil
		}
	}

	doc := frontmatter.Split(data)

	// Scanning: body references plus image-looking metadata strings.
	refs := e.scan(doc)
	log.Debug("scanned document",
		slog.String("phase", string(PhaseScanning)),
		slog.Int("refs", len(refs)))

	// Uploading: dedup by path, windowed fan-out, per-path isolation.
	assets, failures := e.up.UploadAll(ctx, refs)
	res.Uploaded = len(assets)
	res.Failed = failures
	if len(failures) > 0 {
		log.Warn("some images failed to migrate",
			slog.String("phase", string(PhaseUploading)),
			slog.Int("failed", len(failures)))
	}

	// Rewriting.
	newBody := rewrite.Text(doc.Body, assets)
	metaDirty := doc.Meta.RewriteStrings(rewrite.StringRule(assets))

	// Persisting: write the migrated links back so the source document is
	// updated even if the later submission fails.
	joined, err := frontmatter.Join(doc.Meta, newBody)
	if err != nil {
		return nil, fmt.Errorf("export: join: %w", err)
	}
	if metaDirty || newBody != doc.Body {
		if checksum.Sum(joined) != res.Checksum {
			if err := e.store.Write(path, joined); err != nil {
				return nil, fmt.Errorf("export: persist rewrite: %w", err)
			}
			res.Changed = true
			log.Info("document rewritten", slog.String("phase", string(PhasePersisting)))
		}
	}

	// Mapping.
	payload, err := e.buildPayload(ctx, route, doc.Meta, newBody)
	if err != nil {
		e.recordFailure(res, err)
		return nil, err
	}

	// Resolving asset IDs across the whole payload.
	payload = e.res.IDs(ctx, payload).(map[string]any)

	// Submitting.
	entry, err := e.api.CreateEntry(ctx, route.Collection, payload)
	if err != nil {
		e.recordFailure(res, err)
		return nil, err
	}
	res.EntryID = entry.ID

	if e.log != nil {
		if err := e.log.Record(exportlog.Row{
			Path:     path,
			Route:    route.Name,
			Checksum: checksum.Sum(joined),
			EntryID:  entry.ID,
			Status:   exportlog.StatusOK,
		}); err != nil {
			log.Warn("export log record failed", slog.String("error", err.Error()))
		}
	}

	log.Info("export complete",
		slog.String("phase", string(PhaseDone)),
		slog.Int("entry_id", entry.ID),
		slog.Int("uploaded", res.Uploaded),
		slog.Int("failed", len(res.Failed)))
	return res, nil
}

// scan collects image references from the body and from metadata string
// values. References already hosted by the content service are skipped:
// re-running an export over rewritten content is a no-op.
func (e *Exporter) scan(doc frontmatter.Document) []imageref.Ref {
	var refs []imageref.Ref
	for _, r := range imageref.Extract(doc.Body) {
		if strings.Contains(r.Path, imageref.HostedMarker) {
			continue
		}
		refs = append(refs, r)
	}
	doc.Meta.WalkStrings(func(s string) {
		if !imageref.LooksLikeImage(s) || strings.Contains(s, imageref.HostedMarker) {
			return
		}
		refs = append(refs, imageref.Ref{Matched: s, Path: s})
	})
	return refs
}

// buildPayload maps metadata and body into the route's named fields,
// applying each mapping's transform exactly once and validating required
// fields before any submission.
func (e *Exporter) buildPayload(ctx context.Context, route Route, meta frontmatter.Metadata, body string) (map[string]any, error) {
	metaMap := meta.Map()

	if e.meta != nil {
		if err := e.generateMissing(ctx, route, &metaMap, body); err != nil {
			return nil, err
		}
	}

	fields := make([]string, 0, len(route.Mappings))
	for name := range route.Mappings {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	payload := make(map[string]any, len(fields)+1)
	for _, name := range fields {
		m := route.Mappings[name]

		var value any
		switch m.Source {
		case SourceBody:
			value = body
		case SourceMetadata:
			value = metaMap[m.Key]
		}

		value, err := applyTransform(m.Transform, value)
		if err != nil {
			return nil, &apperr.ConfigError{Msg: fmt.Sprintf("field %q: %v", name, err)}
		}

		if m.Required && isEmptyValue(value) {
			return nil, &apperr.ValidationError{Field: name}
		}
		if value != nil {
			payload[name] = value
		}
	}

	if _, mapped := route.Mappings[route.ContentField]; !mapped {
		payload[route.ContentField] = body
	}
	return payload, nil
}

// generateMissing asks the metadata generator for values of mapped
// metadata keys the document lacks. Generated values feed the payload
// only; the document on disk is untouched.
func (e *Exporter) generateMissing(ctx context.Context, route Route, metaMap *map[string]any, body string) error {
	var missing []string
	for _, m := range route.Mappings {
		if m.Source != SourceMetadata {
			continue
		}
		if *metaMap == nil || isEmptyValue((*metaMap)[m.Key]) {
			missing = append(missing, m.Key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	generated, err := e.meta.Generate(ctx, body, missing)
	if err != nil {
		return fmt.Errorf("export: generate metadata: %w", err)
	}
	if *metaMap == nil {
		*metaMap = make(map[string]any, len(generated))
	}
	for k, v := range generated {
		if isEmptyValue((*metaMap)[k]) {
			(*metaMap)[k] = v
		}
	}
	return nil
}

// isEmptyValue reports whether a mapped value counts as missing for
// required-field validation.
func isEmptyValue(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(vv) == ""
	case []any:
		return len(vv) == 0
	case map[string]any:
		return len(vv) == 0
	default:
		return false
	}
}

func (e *Exporter) acquire(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[path]; busy {
		return fmt.Errorf("export: already in progress for %s", path)
	}
	e.inflight[path] = struct{}{}
	return nil
}

func (e *Exporter) release(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, path)
}

func (e *Exporter) recordFailure(res *Result, cause error) {
	if e.log == nil {
		return
	}
	if err := e.log.Record(exportlog.Row{
		Path:     res.Path,
		Route:    res.Route,
		Checksum: res.Checksum,
		Status:   exportlog.StatusFailed,
		Error:    cause.Error(),
	}); err != nil {
		e.logger.Warn("export log record failed", slog.String("error", err.Error()))
	}
}
