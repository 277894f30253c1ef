package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/campus-menu-client/internal/testutil"
	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/connectivity"
	"github.com/Sternrassler/campus-menu-client/pkg/menu"
)

func TestHealthEndpoint(t *testing.T) {
	store := cache.NewStore(cache.Options{})
	store.Put(context.Background(), "k", "v", cache.DefaultPolicy)

	mux := newMux(connectivity.NewStatic(connectivity.Disconnected), store)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body.Status != "ok" || body.Connectivity != "disconnected" {
		t.Errorf("health = %+v", body)
	}
	if body.Cache.MemoryEntries != 1 {
		t.Errorf("MemoryEntries = %d, want 1", body.Cache.MemoryEntries)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newMux(connectivity.NewStatic(connectivity.Connected), cache.NewStore(cache.Options{}))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, "menu_cache_misses_total") {
		t.Error("Expected metrics output to contain menu_cache_misses_total")
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"campus_id=eq.main", "select=*", "note=a=b"})
	if err != nil {
		t.Fatalf("parseParams() error = %v", err)
	}
	want := map[string]any{"campus_id": "eq.main", "select": "*", "note": "a=b"}
	for k, v := range want {
		if params[k] != v {
			t.Errorf("params[%q] = %v, want %v", k, params[k], v)
		}
	}

	if params, err := parseParams(nil); err != nil || params != nil {
		t.Errorf("parseParams(nil) = %v, %v", params, err)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("parseParams(%q) expected error", bad)
		}
	}
}

func TestParseWeekStart(t *testing.T) {
	tests := []struct {
		name  string
		value string
		now   time.Time
		want  string
	}{
		{"wednesday", "", time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC), "2026-03-02"},
		{"monday", "", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "2026-03-02"},
		{"sunday", "", time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC), "2026-03-02"},
		{"explicit", "2026-04-13", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), "2026-04-13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWeekStart(tt.value, tt.now)
			if err != nil {
				t.Fatalf("parseWeekStart() error = %v", err)
			}
			if got.Format(time.DateOnly) != tt.want || got.Hour() != 0 {
				t.Errorf("parseWeekStart() = %v, want %s 00:00", got, tt.want)
			}
		})
	}

	if _, err := parseWeekStart("next monday", time.Now()); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, apperror.ServerError(503))

	out := buf.String()
	if !strings.Contains(out, apperror.ServerError(503).UserMessage()) {
		t.Errorf("missing user message: %q", out)
	}
	if !strings.Contains(out, "HTTP 503") || !strings.Contains(out, "severity high") {
		t.Errorf("missing technical details: %q", out)
	}

	buf.Reset()
	printError(&buf, errors.New("invalid config"))
	if !strings.Contains(buf.String(), "invalid config") {
		t.Errorf("uncategorized error not printed: %q", buf.String())
	}
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	if err := printStats(&buf, cache.Stats{MemoryEntries: 3, Hits: 1, Misses: 1}); err != nil {
		t.Fatalf("printStats() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Memory entries", "Hit rate", "50.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

// runCLI executes the root command against a config pointing at api.
func runCLI(t *testing.T, api *testutil.MockAPI, cacheDir string, args ...string) (string, error) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "menu.yaml")
	config := "api:\n  base_url: " + api.URL() + "\ncache:\n  dir: " + cacheDir + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(configPath, []byte(config), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestCLI_FetchUsesCache(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("/rest/v1/campuses", testutil.NewJSONResponse(`[{"campus_id":"main","display_name":"Main"}]`))
	cacheDir := t.TempDir()

	out, err := runCLI(t, api, cacheDir, "fetch", "/rest/v1/campuses")
	if err != nil {
		t.Fatalf("fetch error = %v", err)
	}
	if !strings.Contains(out, `"displayName": "Main"`) {
		t.Errorf("unexpected fetch output:\n%s", out)
	}

	// A second process reads the persisted entry without a request.
	if _, err := runCLI(t, api, cacheDir, "fetch", "/rest/v1/campuses"); err != nil {
		t.Fatalf("second fetch error = %v", err)
	}
	if n := api.PathCount("/rest/v1/campuses"); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}

	out, err = runCLI(t, api, cacheDir, "stats", "--json")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var stats cache.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.DiskEntries != 1 {
		t.Errorf("DiskEntries = %d, want 1", stats.DiskEntries)
	}

	if _, err := runCLI(t, api, cacheDir, "invalidate", "--path", "/rest/v1/campuses"); err != nil {
		t.Fatalf("invalidate error = %v", err)
	}
	if _, err := runCLI(t, api, cacheDir, "fetch", "/rest/v1/campuses"); err != nil {
		t.Fatalf("fetch after invalidate error = %v", err)
	}
	if n := api.PathCount("/rest/v1/campuses"); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}

	out, err = runCLI(t, api, cacheDir, "clear")
	if err != nil || !strings.Contains(out, "Cache cleared") {
		t.Errorf("clear = %q, %v", out, err)
	}
}

func TestCLI_FetchNotFound(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("/rest/v1/missing", testutil.NewErrorResponse(http.StatusNotFound))

	_, err := runCLI(t, api, t.TempDir(), "fetch", "/rest/v1/missing")
	if !apperror.Is(err, apperror.KindServerError) {
		t.Errorf("error = %v, want server error", err)
	}
}

func TestCLI_Week(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetHandler("/rest/v1/meals", func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimPrefix(r.URL.Query().Get("date"), "eq.")
		_, _ = w.Write([]byte(`[{"name":"Soup ` + date + `","price_cents":300,"date":"` + date + `"}]`))
	})

	out, err := runCLI(t, api, t.TempDir(), "week", "--user", "u1", "--campus", "main", "--start", "2026-03-02", "--json")
	if err != nil {
		t.Fatalf("week error = %v", err)
	}

	var week menu.Week
	if err := json.Unmarshal([]byte(out), &week); err != nil {
		t.Fatalf("decode week: %v\n%s", err, out)
	}
	if len(week.Days) != menu.DaysPerWeek {
		t.Fatalf("days = %d, want %d", len(week.Days), menu.DaysPerWeek)
	}
	if got := week.Days[6].Meals[0].Name; got != "Soup 2026-03-08" {
		t.Errorf("last day meal = %q", got)
	}

	if _, err := runCLI(t, api, t.TempDir(), "week", "--user", "u1"); err == nil {
		t.Error("expected error for missing --campus")
	}
}
