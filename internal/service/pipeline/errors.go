package pipeline

import (
	"errors"
	"net/url"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

func errorCode(err error) string {
	var domErr *core.DomainError
	if errors.As(err, &domErr) && domErr.Code != "" {
		return domErr.Code
	}
	return core.CodeInternal
}

func errorMessage(err error) string {
	var domErr *core.DomainError
	if errors.As(err, &domErr) && domErr.Message != "" {
		return domErr.Message
	}
	return err.Error()
}

func isURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
