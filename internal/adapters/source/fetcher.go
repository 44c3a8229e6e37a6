// Package source acquires local copies of videos from URLs or paths.
package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/fsutil"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
)

// DefaultMaxBytes caps downloads at 2 GiB.
const DefaultMaxBytes int64 = 2 << 30

// Fetcher implements core.SourceFetcher. Remote references are downloaded
// into WorkDir; local paths are used in place.
type Fetcher struct {
	WorkDir  string
	MaxBytes int64
	Client   *http.Client
	Logger   *logging.Logger
}

// NewFetcher creates a fetcher writing into workDir.
func NewFetcher(workDir string, logger *logging.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{
		WorkDir:  workDir,
		MaxBytes: DefaultMaxBytes,
		Client:   http.DefaultClient,
		Logger:   logger,
	}
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch returns a local handle for ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*core.LocalHandle, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, core.ErrValidation(core.CodeEmptySource, "source reference is empty")
	}
	if IsRemote(ref) {
		return f.download(ctx, ref)
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidSource, fmt.Sprintf("source %q is neither a URL nor a readable file", ref)).WithCause(err)
	}
	if info.IsDir() {
		return nil, core.ErrValidation(core.CodeInvalidSource, fmt.Sprintf("source %q is a directory", ref))
	}
	fh, err := fsutil.OpenScoped(ref)
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidSource, fmt.Sprintf("source %q is not readable", ref)).WithCause(err)
	}
	_ = fh.Close()
	return &core.LocalHandle{
		Origin:      ref,
		Path:        ref,
		ContentType: contentTypeFor(ref, ""),
		Size:        info.Size(),
	}, nil
}

func (f *Fetcher) download(ctx context.Context, ref string) (*core.LocalHandle, error) {
	if err := os.MkdirAll(f.WorkDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidSource, err.Error()).WithCause(err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, core.ErrNetwork(fmt.Sprintf("downloading %s: %v", ref, err)).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, core.ErrValidation(core.CodeInvalidSource, fmt.Sprintf("downloading %s: http %d", ref, resp.StatusCode))
	}

	ct := resp.Header.Get("Content-Type")
	out, err := os.CreateTemp(f.WorkDir, "video-*"+extensionFor(ref, ct))
	if err != nil {
		return nil, fmt.Errorf("creating download file: %w", err)
	}
	cleanup := func() error { return os.Remove(out.Name()) }

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, limit+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = cleanup()
		return nil, core.ErrNetwork(fmt.Sprintf("downloading %s: %v", ref, err)).WithCause(err)
	}
	if n > limit {
		_ = cleanup()
		return nil, core.ErrValidation(core.CodeInvalidSource, fmt.Sprintf("source %s exceeds %d bytes", ref, limit))
	}
	if n == 0 {
		_ = cleanup()
		return nil, core.ErrValidation(core.CodeEmptySource, fmt.Sprintf("source %s is empty", ref))
	}

	f.Logger.Debug("downloaded source", "ref", ref, "bytes", n, "path", out.Name())
	return &core.LocalHandle{
		Origin:      ref,
		Path:        out.Name(),
		ContentType: contentTypeFor(ref, ct),
		Size:        n,
		Cleanup:     cleanup,
	}, nil
}

func extensionFor(ref, contentType string) string {
	if u, err := url.Parse(ref); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return strings.ToLower(ext)
		}
	}
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ".mp4"
}

func contentTypeFor(ref, header string) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	ext := filepath.Ext(ref)
	if u, err := url.Parse(ref); err == nil && IsRemote(ref) {
		ext = path.Ext(u.Path)
	}
	if ct := mime.TypeByExtension(strings.ToLower(ext)); ct != "" {
		return ct
	}
	return "video/mp4"
}
