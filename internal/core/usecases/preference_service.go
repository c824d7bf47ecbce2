package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/ports"
	"github.com/fheinonen/helsinki-moves/internal/pkg/textnorm"
)

// Storage keys for the persisted preference snapshot.
const (
	storageModeKey         = "prefs:mode"
	storageHelsinkiOnlyKey = "prefs:helsinkiOnly"
	storageBusStopKey      = "prefs:busStopId"
	storageBusLinesKey     = "prefs:busLines"
	storageBusDestsKey     = "prefs:busDestinations"
	storageResultsPrefix   = "prefs:results:"
)

// ResultLimitOptions is the enumerated set of selectable result counts.
var ResultLimitOptions = []int{5, 8, 10, 15}

// DefaultResultsLimit returns the built-in result count for a mode.
func DefaultResultsLimit(mode domain.Mode) int {
	if mode == domain.ModeBus {
		return 10
	}
	return 8
}

// ValidResultsLimit reports whether v is one of ResultLimitOptions.
func ValidResultsLimit(v int) bool {
	for _, option := range ResultLimitOptions {
		if option == v {
			return true
		}
	}
	return false
}

// Preferences is the canonical merged preference state.
type Preferences struct {
	Mode                  domain.Mode
	HelsinkiOnly          bool
	BusStopID             string
	BusLineFilters        []string
	BusDestinationFilters []string
	ResultsLimit          map[domain.Mode]int
}

// ActiveResultsLimit returns the validated limit for a mode.
func (p Preferences) ActiveResultsLimit(mode domain.Mode) int {
	if v, ok := p.ResultsLimit[mode]; ok && ValidResultsLimit(v) {
		return v
	}
	return DefaultResultsLimit(mode)
}

// PreferenceService merges the three preference sources (query string,
// persisted storage, built-in defaults) into one canonical state and
// projects changes back out. Storage and query-string failures are
// absorbed here and never propagate.
type PreferenceService struct {
	store ports.PreferenceStore
	query ports.QueryState
}

// NewPreferenceService creates a PreferenceService. store may be nil,
// in which case hydration uses only the query string and defaults and
// persistence writes only the query projection.
func NewPreferenceService(store ports.PreferenceStore, query ports.QueryState) *PreferenceService {
	return &PreferenceService{store: store, query: query}
}

// Hydrate resolves every preference field independently: the query
// string wins, then stored values, then built-in defaults. A resolved
// mode other than rail forces HelsinkiOnly off regardless of source.
func (s *PreferenceService) Hydrate(ctx context.Context) Preferences {
	prefs := Preferences{
		Mode:         domain.ModeRail,
		ResultsLimit: make(map[domain.Mode]int),
	}

	if mode := domain.ParseMode(s.queryGet("mode")); mode != "" {
		prefs.Mode = mode
	} else if mode := domain.ParseMode(s.storageGet(ctx, storageModeKey)); mode != "" {
		prefs.Mode = mode
	}

	if v, ok := parseBoolean(s.queryGet("helsinkiOnly")); ok {
		prefs.HelsinkiOnly = v
	} else if v, ok := parseBoolean(s.storageGet(ctx, storageHelsinkiOnlyKey)); ok {
		prefs.HelsinkiOnly = v
	}
	if prefs.Mode != domain.ModeRail {
		prefs.HelsinkiOnly = false
	}

	if _, provided := s.queryHas("stop"); provided {
		prefs.BusStopID = strings.TrimSpace(s.queryGet("stop"))
	} else {
		prefs.BusStopID = strings.TrimSpace(s.storageGet(ctx, storageBusStopKey))
	}

	if values, provided := s.queryValuesProvided("line"); provided {
		prefs.BusLineFilters = textnorm.UniqueNonEmpty(values)
	} else {
		prefs.BusLineFilters = s.storedArray(ctx, storageBusLinesKey)
	}

	if values, provided := s.queryValuesProvided("dest"); provided {
		prefs.BusDestinationFilters = textnorm.UniqueNonEmpty(values)
	} else {
		prefs.BusDestinationFilters = s.storedArray(ctx, storageBusDestsKey)
	}

	for _, mode := range []domain.Mode{domain.ModeRail, domain.ModeBus} {
		if v, err := strconv.Atoi(s.storageGet(ctx, storageResultsPrefix+string(mode))); err == nil && ValidResultsLimit(v) {
			prefs.ResultsLimit[mode] = v
		}
	}
	// A results parameter in the query applies to the resolved mode.
	if v, err := strconv.Atoi(s.queryGet("results")); err == nil && ValidResultsLimit(v) {
		prefs.ResultsLimit[prefs.Mode] = v
	}

	return prefs
}

// Persist writes the full preference snapshot to storage and a minimal
// projection to the query string: parameters equal to their default or
// not applicable to the current mode are omitted.
func (s *PreferenceService) Persist(ctx context.Context, prefs Preferences) {
	s.storageSet(ctx, storageModeKey, string(prefs.Mode))
	s.storageSet(ctx, storageHelsinkiOnlyKey, boolFlag(prefs.HelsinkiOnly))
	s.storageSet(ctx, storageBusStopKey, prefs.BusStopID)
	s.storageSetJSON(ctx, storageBusLinesKey, prefs.BusLineFilters)
	s.storageSetJSON(ctx, storageBusDestsKey, prefs.BusDestinationFilters)
	for _, mode := range []domain.Mode{domain.ModeRail, domain.ModeBus} {
		s.storageSet(ctx, storageResultsPrefix+string(mode), strconv.Itoa(prefs.ActiveResultsLimit(mode)))
	}

	if s.query == nil {
		return
	}

	var pairs [][2]string
	if prefs.Mode != domain.ModeRail {
		pairs = append(pairs, [2]string{"mode", string(prefs.Mode)})
	}
	if prefs.Mode == domain.ModeRail && prefs.HelsinkiOnly {
		pairs = append(pairs, [2]string{"helsinkiOnly", "1"})
	}
	if limit := prefs.ActiveResultsLimit(prefs.Mode); limit != DefaultResultsLimit(prefs.Mode) {
		pairs = append(pairs, [2]string{"results", strconv.Itoa(limit)})
	}
	if prefs.Mode == domain.ModeBus {
		if prefs.BusStopID != "" {
			pairs = append(pairs, [2]string{"stop", prefs.BusStopID})
		}
		for _, line := range prefs.BusLineFilters {
			pairs = append(pairs, [2]string{"line", line})
		}
		for _, dest := range prefs.BusDestinationFilters {
			pairs = append(pairs, [2]string{"dest", dest})
		}
	}
	s.query.Replace(pairs)
}

func (s *PreferenceService) queryGet(key string) string {
	if s.query == nil {
		return ""
	}
	v, _ := s.query.Get(key)
	return v
}

func (s *PreferenceService) queryHas(key string) (string, bool) {
	if s.query == nil {
		return "", false
	}
	return s.query.Get(key)
}

func (s *PreferenceService) queryValuesProvided(key string) ([]string, bool) {
	if s.query == nil {
		return nil, false
	}
	if _, ok := s.query.Get(key); !ok {
		return nil, false
	}
	return s.query.Values(key), true
}

func (s *PreferenceService) storageGet(ctx context.Context, key string) string {
	if s.store == nil {
		return ""
	}
	v, err := s.store.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}

func (s *PreferenceService) storageSet(ctx context.Context, key, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		slog.Debug("preference write failed", "key", key, "error", err)
	}
}

func (s *PreferenceService) storageSetJSON(ctx context.Context, key string, values []string) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return
	}
	s.storageSet(ctx, key, string(data))
}

func (s *PreferenceService) storedArray(ctx context.Context, key string) []string {
	raw := s.storageGet(ctx, key)
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return textnorm.UniqueNonEmpty(values)
}

// parseBoolean accepts the flag spellings used in URLs and storage.
// The second return reports whether raw was a recognizable boolean.
func parseBoolean(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
