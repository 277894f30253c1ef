package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/campus-menu-client/internal/testutil"
	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/rest/v1/meals?user_id=eq.42", nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

type failingTokens struct{ err error }

func (f failingTokens) Token(context.Context) (string, error) { return "", f.err }

func TestAuthInterceptor(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	valid := signedToken(t, now.Add(time.Hour))
	expired := signedToken(t, now.Add(-time.Minute))

	tests := []struct {
		name       string
		tokens     TokenSource
		wantKind   apperror.Kind
		wantBearer string
	}{
		{name: "valid jwt", tokens: StaticToken(valid), wantBearer: "Bearer " + valid},
		{name: "opaque token", tokens: StaticToken("opaque"), wantBearer: "Bearer opaque"},
		{name: "expired jwt", tokens: StaticToken(expired), wantKind: apperror.KindTokenExpired},
		{name: "empty token", tokens: StaticToken(""), wantKind: apperror.KindNotAuthenticated},
		{name: "no token source", tokens: nil, wantKind: apperror.KindNotAuthenticated},
		{name: "token source error", tokens: failingTokens{errors.New("keychain locked")}, wantKind: apperror.KindNotAuthenticated},
		{name: "categorized source error", tokens: failingTokens{apperror.New(apperror.KindTokenRefreshFailed)}, wantKind: apperror.KindTokenRefreshFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AuthInterceptor{
				APIKey: "anon-key",
				Tokens: tt.tokens,
				Now:    func() time.Time { return now },
			}
			req := newRequest(t)

			err := a.InterceptRequest(context.Background(), req)

			if got := req.Header.Get("apikey"); got != "anon-key" {
				t.Errorf("apikey = %q", got)
			}
			if tt.wantKind != "" {
				wantKind(t, err, tt.wantKind)
				if req.Header.Get("Authorization") != "" {
					t.Error("Authorization must not be set on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("InterceptRequest() error = %v", err)
			}
			if got := req.Header.Get("Authorization"); got != tt.wantBearer {
				t.Errorf("Authorization = %q, want %q", got, tt.wantBearer)
			}
		})
	}
}

func TestUnauthorizedInterceptor(t *testing.T) {
	tests := []struct {
		status int
		want   apperror.Kind
	}{
		{http.StatusUnauthorized, apperror.KindSessionExpired},
		{http.StatusForbidden, apperror.KindInsufficientPermissions},
		{http.StatusOK, ""},
		{http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		err := UnauthorizedInterceptor{}.InterceptResponse(context.Background(), &Response{StatusCode: tt.status})
		if tt.want == "" {
			if err != nil {
				t.Errorf("status %d: unexpected error %v", tt.status, err)
			}
			continue
		}
		wantKind(t, err, tt.want)
	}
}

func TestUnauthorizedInterceptor_InPipeline(t *testing.T) {
	env := setupTestClient(t, Config{ResponseInterceptors: []ResponseInterceptor{UnauthorizedInterceptor{}}})
	env.api.SetResponse("/private", testutil.NewErrorResponse(http.StatusUnauthorized))

	_, err := Execute[map[string]any](context.Background(), env.client, env.endpoint("/private"))
	wantKind(t, err, apperror.KindSessionExpired)
}

func TestRequestIDInterceptor(t *testing.T) {
	req := newRequest(t)
	if err := (RequestIDInterceptor{}).InterceptRequest(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	id := req.Header.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", id, err)
	}

	// An existing id is kept.
	req.Header.Set(RequestIDHeader, "caller-id")
	_ = (RequestIDInterceptor{}).InterceptRequest(context.Background(), req)
	if got := req.Header.Get(RequestIDHeader); got != "caller-id" {
		t.Errorf("X-Request-ID = %q, want caller-id", got)
	}
}

func TestLoggingInterceptor_OmitsSecrets(t *testing.T) {
	buf := &bytes.Buffer{}
	l := LoggingInterceptor{Logger: zerolog.New(buf).Level(zerolog.DebugLevel)}

	req := newRequest(t)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("apikey", "secret-key")

	_ = l.InterceptRequest(context.Background(), req)
	_ = l.InterceptResponse(context.Background(), &Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"password":"hunter2"}`),
		Request:    req,
	})

	output := buf.String()
	for _, secret := range []string{"secret-token", "secret-key", "hunter2", "user_id"} {
		if strings.Contains(output, secret) {
			t.Errorf("log output leaks %q: %s", secret, output)
		}
	}
	for _, want := range []string{"/rest/v1/meals", `"status_code":200`, `"bytes":22`} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %q: %s", want, output)
		}
	}
}
