package pipeline

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

const maxIDNameLength = 40

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9]+`)
	validID   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
	idTimeFmt = "20060102_150405"
)

// NewJobID builds <sanitized-name>_<yyyymmdd_hhmmss>_<short-uuid>.
func NewJobID(name string, at time.Time) core.JobID {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return core.JobID(sanitizeName(name) + "_" + at.UTC().Format(idTimeFmt) + "_" + short)
}

func sanitizeName(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if len(s) > maxIDNameLength {
		s = strings.TrimRight(s[:maxIDNameLength], "_")
	}
	if s == "" {
		return "video"
	}
	return s
}

// ValidateJobID rejects ids that cannot be used as keys or file names.
func ValidateJobID(id core.JobID) error {
	if !validID.MatchString(string(id)) || strings.Contains(string(id), "..") {
		return core.ErrValidation(core.CodeInvalidJobID,
			"job id must be 1-128 letters, digits, '.', '_' or '-' and start with a letter or digit")
	}
	return nil
}

// nameFromSource derives a job name from the last path segment of ref.
func nameFromSource(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "video"
	}
	return base
}
