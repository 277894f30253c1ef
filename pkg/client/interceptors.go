package client

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// LoggingInterceptor logs request and response metadata at debug level.
// Bodies and credentials are never logged.
type LoggingInterceptor struct {
	Logger zerolog.Logger
}

// InterceptRequest implements RequestInterceptor.
func (l LoggingInterceptor) InterceptRequest(_ context.Context, req *http.Request) error {
	l.Logger.Debug().
		Str("method", req.Method).
		Str("url", redactedURL(req)).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Int64("bytes", req.ContentLength).
		Msg("Sending request")
	return nil
}

// InterceptResponse implements ResponseInterceptor.
func (l LoggingInterceptor) InterceptResponse(_ context.Context, resp *Response) error {
	event := l.Logger.Debug().
		Int("status_code", resp.StatusCode).
		Int("bytes", len(resp.Body))
	if resp.Request != nil {
		event = event.
			Str("method", resp.Request.Method).
			Str("url", redactedURL(resp.Request)).
			Str("request_id", resp.Request.Header.Get(RequestIDHeader))
	}
	event.Msg("Received response")
	return nil
}

// redactedURL drops the query string, which may carry user identifiers.
func redactedURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// RequestIDInterceptor sets X-Request-ID on requests that have none.
type RequestIDInterceptor struct{}

// InterceptRequest implements RequestInterceptor.
func (RequestIDInterceptor) InterceptRequest(_ context.Context, req *http.Request) error {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return nil
}

// TokenSource supplies the current access token. An empty token means the
// user is not signed in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// AuthInterceptor adds the backend's "apikey" header and a bearer token.
//
// The token's signature is not verified here (the server does that); only
// the "exp" claim is checked so an expired session fails before the call.
// Tokens that are not JWTs are passed through unchecked.
type AuthInterceptor struct {
	APIKey string
	Tokens TokenSource

	// Now defaults to time.Now.
	Now func() time.Time
}

// InterceptRequest implements RequestInterceptor.
func (a AuthInterceptor) InterceptRequest(ctx context.Context, req *http.Request) error {
	if a.APIKey != "" {
		req.Header.Set("apikey", a.APIKey)
	}
	if a.Tokens == nil {
		return apperror.New(apperror.KindNotAuthenticated)
	}

	token, err := a.Tokens.Token(ctx)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return err
		}
		return apperror.Wrap(apperror.KindNotAuthenticated, err)
	}
	if token == "" {
		return apperror.New(apperror.KindNotAuthenticated)
	}

	if a.expired(token) {
		return apperror.New(apperror.KindTokenExpired)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a AuthInterceptor) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return !now().Before(exp.Time)
}

// UnauthorizedInterceptor maps 401 to an expired session and 403 to missing
// permissions.
type UnauthorizedInterceptor struct{}

// InterceptResponse implements ResponseInterceptor.
func (UnauthorizedInterceptor) InterceptResponse(_ context.Context, resp *Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperror.New(apperror.KindSessionExpired)
	case http.StatusForbidden:
		return apperror.New(apperror.KindInsufficientPermissions)
	}
	return nil
}
