// Package uploader migrates image references to the content service:
// local vault files are uploaded, external URLs are fetched and uploaded
// unless the service already holds an asset with that source URL.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/halvard/raido/internal/apperr"
	"github.com/halvard/raido/internal/contentservice"
	"github.com/halvard/raido/internal/imageref"
	"github.com/halvard/raido/internal/retry"
	"github.com/halvard/raido/internal/storage"
)

const (
	defaultWindow = 5
	defaultDelay  = time.Second
)

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Config tunes batch behaviour. Zero values take defaults.
type Config struct {
	// Window is the number of uploads dispatched fully in parallel before
	// pausing. Respects upstream rate limits, not a correctness concern.
	Window int
	// Delay is the fixed pause between windows.
	Delay time.Duration
	// Policy bounds retries for transient network failures.
	Policy retry.Policy
}

// Uploader uploads and deduplicates image assets for one vault.
type Uploader struct {
	api    contentservice.API
	store  storage.Provider
	logger *slog.Logger
	fetch  *fetcher

	window int
	delay  time.Duration
	policy retry.Policy
}

// New creates an Uploader. logger must not be nil.
func New(api contentservice.API, store storage.Provider, logger *slog.Logger, cfg Config) *Uploader {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Delay < 0 {
		cfg.Delay = defaultDelay
	}
	if cfg.Policy == (retry.Policy{}) {
		cfg.Policy = retry.DefaultPolicy()
	}
	return &Uploader{
		api:    api,
		store:  store,
		logger: logger,
		fetch:  newFetcher(),
		window: cfg.Window,
		delay:  cfg.Delay,
		policy: cfg.Policy,
	}
}

// UploadAll processes refs deduplicated by path: each distinct path is
// uploaded exactly once regardless of how often it is referenced. Paths in
// a window run in parallel; a fixed delay separates windows. Individual
// failures are recorded and returned, never fatal: a failed path is simply
// absent from the asset map.
func (u *Uploader) UploadAll(ctx context.Context, refs []imageref.Ref) (map[string]*contentservice.Asset, map[string]error) {
	type job struct {
		path string
		alt  string
	}

	seen := make(map[string]struct{}, len(refs))
	var jobs []job
	for _, r := range refs {
		if _, ok := seen[r.Path]; ok {
			continue
		}
		seen[r.Path] = struct{}{}
		jobs = append(jobs, job{path: r.Path, alt: altForPath(refs, r.Path)})
	}

	assets := make(map[string]*contentservice.Asset, len(jobs))
	failures := make(map[string]error)
	var mu sync.Mutex

	for start := 0; start < len(jobs); start += u.window {
		end := start + u.window
		if end > len(jobs) {
			end = len(jobs)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for _, j := range jobs[start:end] {
			g.Go(func() error {
				asset, err := u.uploadPath(gCtx, j.path, j.alt)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures[j.path] = &apperr.UploadError{Path: j.path, Err: err}
					u.logger.Warn("upload failed",
						slog.String("path", j.path),
						slog.String("error", err.Error()))
					return nil // isolated: one bad image never aborts the batch
				}
				assets[j.path] = asset
				u.logger.Debug("upload ok",
					slog.String("path", j.path),
					slog.String("url", asset.URL),
					slog.Int("id", asset.ID))
				return nil
			})
		}
		_ = g.Wait()

		if end < len(jobs) && u.delay > 0 {
			t := time.NewTimer(u.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return assets, failures
			case <-t.C:
			}
		}
	}

	return assets, failures
}

// uploadPath dispatches on local vs external.
func (u *Uploader) uploadPath(ctx context.Context, p, alt string) (*contentservice.Asset, error) {
	if imageref.Classify(p) == imageref.KindExternal {
		return u.UploadExternal(ctx, p)
	}
	return u.UploadLocal(ctx, p, alt)
}

// UploadLocal reads a vault file and uploads it, attaching display
// metadata derived from the file name and the reference's alt text.
func (u *Uploader) UploadLocal(ctx context.Context, vaultPath, alt string) (*contentservice.Asset, error) {
	data, err := u.store.Read(vaultPath)
	if err != nil {
		return nil, err
	}

	filename := sanitizeFilename(path.Base(strings.ReplaceAll(vaultPath, "\\", "/")))
	info := &contentservice.FileInfo{
		Name:            imageref.Stem(vaultPath),
		AlternativeText: alt,
	}

	return u.uploadWithRetry(ctx, data, filename, info)
}

// UploadExternal deduplicates by stored URL first: if the service already
// holds an asset whose URL matches, it is reused without re-fetching.
// Otherwise the remote bytes are fetched and uploaded as a new asset.
func (u *Uploader) UploadExternal(ctx context.Context, rawURL string) (*contentservice.Asset, error) {
	existing, err := u.FindExisting(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		u.logger.Debug("asset already migrated", slog.String("url", rawURL))
		return existing, nil
	}

	data, detectedExt, err := u.fetch.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	filename := filenameFromURL(rawURL, detectedExt)
	info := &contentservice.FileInfo{Name: imageref.Stem(rawURL)}

	return u.uploadWithRetry(ctx, data, filename, info)
}

// FindExisting queries the service's asset listing by exact stored URL.
func (u *Uploader) FindExisting(ctx context.Context, rawURL string) (*contentservice.Asset, error) {
	return u.api.FindAssetByURL(ctx, rawURL)
}

func (u *Uploader) uploadWithRetry(ctx context.Context, data []byte, filename string, info *contentservice.FileInfo) (*contentservice.Asset, error) {
	var asset *contentservice.Asset
	err := retry.Do(ctx, u.policy, func() error {
		var err error
		asset, err = u.api.UploadFile(ctx, data, filename, info)
		return err
	}, isTransient)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// isTransient reports whether an error is worth retrying. Only transport
// failures qualify; a service rejection will not improve on retry.
func isTransient(err error) bool {
	var ne *apperr.NetworkError
	return errors.As(err, &ne)
}

// altForPath returns the first non-empty alt text among refs for a path.
func altForPath(refs []imageref.Ref, p string) string {
	for _, r := range refs {
		if r.Path == p && r.Alt != "" {
			return r.Alt
		}
	}
	return ""
}

// filenameFromURL derives a file name from the URL's last path segment,
// falling back to a generated name when absent.
func filenameFromURL(rawURL, fallbackExt string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		base := path.Base(parsed.Path)
		if base != "" && base != "." && base != "/" {
			name := sanitizeFilename(base)
			if path.Ext(name) == "" && fallbackExt != "" {
				name += fallbackExt
			}
			return name
		}
	}
	ext := fallbackExt
	if ext == "" {
		ext = ".bin"
	}
	return uuid.New().String() + ext
}

// sanitizeFilename replaces anything outside [a-zA-Z0-9._-] with a dash.
func sanitizeFilename(name string) string {
	out := safeFilenameRe.ReplaceAllString(name, "-")
	if out == "" || strings.Trim(out, ".-") == "" {
		return fmt.Sprintf("asset-%s", uuid.New().String())
	}
	return out
}
