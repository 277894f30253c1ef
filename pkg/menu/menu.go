// Package menu is the weekly-menu repository of the cafeteria app. It reads
// and writes meals through the request pipeline and caches each day under
// its menu key, so a week that was opened once stays readable offline.
package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/client"
	"github.com/Sternrassler/campus-menu-client/pkg/recovery"
)

// DefaultTable is the REST resource holding meals.
const DefaultTable = "meals"

// DaysPerWeek is the number of days returned by Week.
const DaysPerWeek = 7

// Meal is one dish on a day's menu.
type Meal struct {
	ID          string   `json:"id,omitempty"`
	UserID      string   `json:"userId"`
	CampusID    string   `json:"campusId"`
	Date        string   `json:"date"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	PriceCents  int      `json:"priceCents"`
	Allergens   []string `json:"allergens,omitempty"`
	Vegetarian  bool     `json:"vegetarian"`
}

// Day is the menu of a single date.
type Day struct {
	Date  time.Time `json:"date"`
	Meals []Meal    `json:"meals"`
}

// Week is seven consecutive days starting at Start.
type Week struct {
	Start time.Time `json:"start"`
	Days  []Day     `json:"days"`
}

// Config configures a Repository.
type Config struct {
	// Client is required. Its cache stores the per-day menus.
	Client *client.Client

	// BaseURL is the backend root, e.g. https://xyz.supabase.co.
	BaseURL string

	// Table defaults to DefaultTable.
	Table string

	// Recovery, when set, retries failed fetches through the handler.
	Recovery *recovery.Handler

	// Location decides which date is "today". Defaults to time.Local.
	Location *time.Location

	Clock  clock.Clock
	Logger zerolog.Logger
}

// Repository reads and writes weekly menus.
type Repository struct {
	client   *client.Client
	store    *cache.Store
	baseURL  string
	table    string
	recovery *recovery.Handler
	location *time.Location
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewRepository creates a repository.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("menu: client is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("menu: base URL is required")
	}

	r := &Repository{
		client:   cfg.Client,
		store:    cfg.Client.Cache(),
		baseURL:  cfg.BaseURL,
		table:    cfg.Table,
		recovery: cfg.Recovery,
		location: cfg.Location,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if r.table == "" {
		r.table = DefaultTable
	}
	if r.location == nil {
		r.location = time.Local
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	return r, nil
}

// Week returns the seven days starting at weekStart (any time on that date).
// Cached days are served from the cache; the rest are fetched and cached,
// today's menu with the short-term policy and every other day with the
// default policy.
func (r *Repository) Week(ctx context.Context, userID, campusID string, weekStart time.Time) (Week, error) {
	start := r.dateOf(weekStart)
	week := Week{Start: start, Days: make([]Day, 0, DaysPerWeek)}

	for i := 0; i < DaysPerWeek; i++ {
		date := start.AddDate(0, 0, i)
		meals, err := r.day(ctx, userID, campusID, date)
		if err != nil {
			return week, err
		}
		week.Days = append(week.Days, Day{Date: date, Meals: meals})
	}
	return week, nil
}

// Day returns the menu of a single date.
func (r *Repository) Day(ctx context.Context, userID, campusID string, date time.Time) (Day, error) {
	date = r.dateOf(date)
	meals, err := r.day(ctx, userID, campusID, date)
	if err != nil {
		return Day{}, err
	}
	return Day{Date: date, Meals: meals}, nil
}

func (r *Repository) day(ctx context.Context, userID, campusID string, date time.Time) ([]Meal, error) {
	key := cache.MenuKey(userID, campusID, date)

	var meals []Meal
	if r.store.Get(ctx, key, &meals) {
		return meals, nil
	}

	ep := r.dayEndpoint(userID, campusID, date)
	var err error
	if r.recovery != nil {
		meals, err = client.ExecuteWithRecovery[[]Meal](ctx, r.client, r.recovery, ep, client.WithCache(false))
	} else {
		meals, err = client.Execute[[]Meal](ctx, r.client, ep, client.WithCache(false))
	}
	if err != nil {
		return nil, err
	}
	if meals == nil {
		meals = []Meal{}
	}

	if ctx.Err() == nil {
		r.store.Put(ctx, key, meals, r.policyFor(date))
	}

	r.logger.Debug().
		Str("date", date.Format(time.DateOnly)).
		Int("meals", len(meals)).
		Msg("Fetched day menu")
	return meals, nil
}

// policyFor picks the short-term policy for today, whose menu still changes
// during the day.
func (r *Repository) policyFor(date time.Time) cache.Policy {
	if date.Equal(r.dateOf(r.clock.Now())) {
		return cache.ShortTermPolicy
	}
	return cache.DefaultPolicy
}

// Save upserts the meals of a day and drops the cached copy of that day.
func (r *Repository) Save(ctx context.Context, userID, campusID string, day Day) error {
	if err := validateDay(userID, campusID, day); err != nil {
		return err
	}
	date := r.dateOf(day.Date)

	rows := make([]mealRow, 0, len(day.Meals))
	for _, m := range day.Meals {
		rows = append(rows, newMealRow(userID, campusID, date, m))
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return apperror.Wrap(apperror.KindEncodingFailed, err)
	}

	ep := client.Endpoint{
		BaseURL: r.baseURL,
		Path:    r.tablePath(),
		Method:  http.MethodPost,
		Headers: map[string]string{
			"Prefer": "resolution=merge-duplicates,return=representation",
		},
		Body: body,
	}
	if _, err := client.Execute[[]Meal](ctx, r.client, ep); err != nil {
		return err
	}

	r.InvalidateDay(ctx, userID, campusID, date)
	r.logger.Info().
		Str("date", date.Format(time.DateOnly)).
		Int("meals", len(rows)).
		Msg("Saved day menu")
	return nil
}

// InvalidateDay removes the cached menu of a date.
func (r *Repository) InvalidateDay(ctx context.Context, userID, campusID string, date time.Time) {
	r.store.Remove(ctx, cache.MenuKey(userID, campusID, r.dateOf(date)))
}

// InvalidateWeek removes the cached menus of the seven days starting at weekStart.
func (r *Repository) InvalidateWeek(ctx context.Context, userID, campusID string, weekStart time.Time) {
	start := r.dateOf(weekStart)
	for i := 0; i < DaysPerWeek; i++ {
		r.InvalidateDay(ctx, userID, campusID, start.AddDate(0, 0, i))
	}
}

func (r *Repository) tablePath() string {
	return "/rest/v1/" + strings.TrimPrefix(r.table, "/")
}

func (r *Repository) dayEndpoint(userID, campusID string, date time.Time) client.Endpoint {
	return client.Endpoint{
		BaseURL: r.baseURL,
		Path:    r.tablePath(),
		Parameters: map[string]any{
			"select":    "*",
			"user_id":   "eq." + userID,
			"campus_id": "eq." + campusID,
			"date":      "eq." + date.Format(time.DateOnly),
			"order":     "category.asc,name.asc",
		},
	}
}

// dateOf truncates t to midnight in the repository's location.
func (r *Repository) dateOf(t time.Time) time.Time {
	t = t.In(r.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.location)
}

// mealRow is the backend's column layout.
type mealRow struct {
	ID          string   `json:"id,omitempty"`
	UserID      string   `json:"user_id"`
	CampusID    string   `json:"campus_id"`
	Date        string   `json:"date"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	PriceCents  int      `json:"price_cents"`
	Allergens   []string `json:"allergens,omitempty"`
	Vegetarian  bool     `json:"vegetarian"`
}

func newMealRow(userID, campusID string, date time.Time, m Meal) mealRow {
	return mealRow{
		ID:          m.ID,
		UserID:      userID,
		CampusID:    campusID,
		Date:        date.Format(time.DateOnly),
		Name:        m.Name,
		Category:    m.Category,
		Description: m.Description,
		PriceCents:  m.PriceCents,
		Allergens:   m.Allergens,
		Vegetarian:  m.Vegetarian,
	}
}

func validateDay(userID, campusID string, day Day) error {
	switch {
	case userID == "":
		return apperror.ValidationFailed("user id is empty")
	case campusID == "":
		return apperror.ValidationFailed("campus id is empty")
	case day.Date.IsZero():
		return apperror.ValidationFailed("date is missing")
	}
	for i, m := range day.Meals {
		if strings.TrimSpace(m.Name) == "" {
			return apperror.ValidationFailed(fmt.Sprintf("meal %d has no name", i+1))
		}
		if m.PriceCents < 0 {
			return apperror.ValidationFailed(fmt.Sprintf("meal %q has a negative price", m.Name))
		}
	}
	return nil
}
