package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/cache"
)

// Endpoint describes one HTTP call. It is an immutable request template.
type Endpoint struct {
	BaseURL string
	Path    string

	// Method defaults to GET.
	Method string

	// Headers override the default Content-Type and Accept headers.
	Headers map[string]string

	// Parameters become the query string for GET and the JSON body otherwise.
	Parameters map[string]any

	// Body is sent verbatim and takes precedence over Parameters.
	Body []byte

	// Timeout bounds the call. Zero means the client default.
	Timeout time.Duration
}

// HTTPMethod returns the upper-cased method, GET when unset.
func (e Endpoint) HTTPMethod() string {
	if e.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(e.Method)
}

// CacheKey returns the cache key of the call.
func (e Endpoint) CacheKey() string {
	return cache.EndpointKey(e.BaseURL, e.Path, e.HTTPMethod(), e.Parameters, e.Body)
}

// URL returns the full request URL, including the query string for GET.
func (e Endpoint) URL() (string, error) {
	u, err := url.Parse(strings.TrimSuffix(e.BaseURL, "/") + "/" + strings.TrimPrefix(e.Path, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint url: %w", err)
	}

	if e.HTTPMethod() == http.MethodGet && len(e.Parameters) > 0 {
		query := u.Query()
		for _, name := range sortedNames(e.Parameters) {
			addQueryValue(query, name, e.Parameters[name])
		}
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// newRequest builds the concrete request.
func (e Endpoint) newRequest(ctx context.Context) (*http.Request, error) {
	target, err := e.URL()
	if err != nil {
		return nil, apperror.RequestFailed("invalid endpoint url", err)
	}

	var body io.Reader
	if e.HTTPMethod() != http.MethodGet {
		switch {
		case e.Body != nil:
			body = bytes.NewReader(e.Body)
		case len(e.Parameters) > 0:
			data, err := json.Marshal(e.Parameters)
			if err != nil {
				return nil, apperror.Wrap(apperror.KindEncodingFailed, err)
			}
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, e.HTTPMethod(), target, body)
	if err != nil {
		return nil, apperror.RequestFailed("invalid request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for name, value := range e.Headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

func sortedNames(params map[string]any) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// addQueryValue renders scalars with fmt and repeats the key for slices.
func addQueryValue(query url.Values, name string, value any) {
	switch v := value.(type) {
	case nil:
		query.Add(name, "")
	case string:
		query.Add(name, v)
	case []string:
		for _, item := range v {
			query.Add(name, item)
		}
	case []any:
		for _, item := range v {
			query.Add(name, fmt.Sprint(item))
		}
	case time.Time:
		query.Add(name, v.Format(time.RFC3339))
	default:
		query.Add(name, fmt.Sprint(v))
	}
}
