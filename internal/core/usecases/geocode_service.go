package usecases

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/ports"
	"github.com/fheinonen/helsinki-moves/internal/pkg/textnorm"
)

// Scoring weights. Strong whole-word token evidence must be able to
// overturn provider confidence, and an unmatched query token costs more
// than the full confidence range, so a candidate matching zero tokens can
// never outrank one that matches at least one.
const (
	weightConfidence   = 10.0
	weightStrongMatch  = 40.0
	weightPartialMatch = 15.0
	penaltyUnmatched   = 20.0
	weightVariant      = 6.0

	ambiguityMargin = 5.0
	maxChoices      = 3

	maxTextVariants = 5
)

// DefaultMunicipalities are appended to queries as fallback variants.
var DefaultMunicipalities = []string{"helsinki", "espoo"}

// GeocodeService resolves free-text location queries into a single point
// or, when the top candidates are too close to call, a choice set.
type GeocodeService struct {
	geocoder       ports.Geocoder
	municipalities []string
}

// NewGeocodeService creates a GeocodeService. An empty municipality list
// falls back to DefaultMunicipalities.
func NewGeocodeService(geocoder ports.Geocoder, municipalities []string) *GeocodeService {
	if len(municipalities) == 0 {
		municipalities = DefaultMunicipalities
	}
	return &GeocodeService{geocoder: geocoder, municipalities: municipalities}
}

// BuildTextVariants expands a raw query into ordered, deduplicated
// normalized variants, most specific first: the normalized query, the
// query with internal whitespace removed, then municipality-suffixed
// forms. The list is capped at maxTextVariants. Empty input yields nil.
func (s *GeocodeService) BuildTextVariants(query string) []string {
	normalized := textnorm.Normalize(query)
	if normalized == "" {
		return nil
	}

	variants := []string{
		normalized,
		strings.ReplaceAll(normalized, " ", ""),
	}
	for _, municipality := range s.municipalities {
		municipality = textnorm.Normalize(municipality)
		if municipality == "" {
			continue
		}
		variants = append(variants, normalized+municipality, normalized+" "+municipality)
	}

	deduped := textnorm.UniqueNonEmpty(variants)
	if len(deduped) > maxTextVariants {
		deduped = deduped[:maxTextVariants]
	}
	return deduped
}

// RankCandidates scores candidates against the original query and returns
// them in a deterministic total order: score descending, then variant
// index ascending, then confidence descending, then label.
func RankCandidates(candidates []domain.GeocodeCandidate, query string) []domain.RankedCandidate {
	queryTokens := textnorm.Tokenize(query)

	ranked := make([]domain.RankedCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Label == "" || !cand.Point.Valid() {
			continue
		}
		strong, partial := matchQueryTokens(queryTokens, cand.Label)
		unmatched := len(queryTokens) - strong - partial

		confidence := cand.Confidence
		if confidence < 0 {
			confidence = 0
		} else if confidence > 1 {
			confidence = 1
		}

		score := confidence*weightConfidence +
			float64(strong)*weightStrongMatch +
			float64(partial)*weightPartialMatch -
			float64(unmatched)*penaltyUnmatched +
			weightVariant/float64(cand.VariantIndex+1)

		ranked = append(ranked, domain.RankedCandidate{
			Candidate:          cand,
			StrongTokenMatches: strong,
			Score:              score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Candidate.VariantIndex != b.Candidate.VariantIndex {
			return a.Candidate.VariantIndex < b.Candidate.VariantIndex
		}
		if a.Candidate.Confidence != b.Candidate.Confidence {
			return a.Candidate.Confidence > b.Candidate.Confidence
		}
		return a.Candidate.Label < b.Candidate.Label
	})
	return ranked
}

// matchQueryTokens counts query tokens appearing as whole words in the
// label (strong) and those covered only as substrings of a label token
// (partial).
func matchQueryTokens(queryTokens []string, label string) (strong, partial int) {
	labelTokens := textnorm.Tokenize(label)
	whole := make(map[string]struct{}, len(labelTokens))
	for _, t := range labelTokens {
		whole[t] = struct{}{}
	}

	for _, qt := range queryTokens {
		if _, ok := whole[qt]; ok {
			strong++
			continue
		}
		for _, lt := range labelTokens {
			if strings.Contains(lt, qt) {
				partial++
				break
			}
		}
	}
	return strong, partial
}

// BuildAmbiguityChoices inspects the top of a ranked list and returns a
// choice set when at least two distinctly labeled candidates score within
// the ambiguity margin of the leader. Collection stops at the first
// candidate outside the margin or when maxChoices is reached; candidates
// repeating an already collected label are skipped. Fewer than two
// qualifying candidates means no ambiguity.
func BuildAmbiguityChoices(ranked []domain.RankedCandidate) []domain.AmbiguityChoice {
	if len(ranked) < 2 {
		return nil
	}

	reference := ranked[0].Score
	choices := make([]domain.AmbiguityChoice, 0, maxChoices)
	seen := make(map[string]struct{}, maxChoices)

	for _, rc := range ranked {
		if reference-rc.Score >= ambiguityMargin {
			break
		}
		key := textnorm.Fold(rc.Candidate.Label)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		choices = append(choices, domain.AmbiguityChoice{
			Label: rc.Candidate.Label,
			Lat:   rc.Candidate.Point.Lat,
			Lon:   rc.Candidate.Point.Lon,
		})
		if len(choices) == maxChoices {
			break
		}
	}

	if len(choices) < 2 {
		return nil
	}
	return choices
}

// NormalizeLanguage accepts the language hints understood by the
// geocoder. Anything else resolves to "" (no hint).
func NormalizeLanguage(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fi":
		return "fi"
	case "sv":
		return "sv"
	case "en":
		return "en"
	}
	return ""
}

// Resolve geocodes a free-text query. Each variant is queried separately;
// a failed variant contributes zero candidates and ranking proceeds over
// whatever was collected. Zero usable candidates yields an empty
// Resolution, never an error.
func (s *GeocodeService) Resolve(ctx context.Context, query, lang string) (*domain.Resolution, error) {
	variants := s.BuildTextVariants(query)
	if len(variants) == 0 {
		return &domain.Resolution{}, nil
	}

	lang = NormalizeLanguage(lang)

	var collected []domain.GeocodeCandidate
	for i, variant := range variants {
		candidates, err := s.geocoder.Search(ctx, variant, lang)
		if err != nil {
			slog.Debug("geocode variant failed", "variant", variant, "error", err)
			continue
		}
		for _, cand := range candidates {
			cand.VariantIndex = i
			collected = append(collected, cand)
		}
	}

	ranked := RankCandidates(collected, query)
	if len(ranked) == 0 {
		return &domain.Resolution{}, nil
	}

	if choices := BuildAmbiguityChoices(ranked); choices != nil {
		return &domain.Resolution{Choices: choices}, nil
	}

	top := ranked[0].Candidate
	return &domain.Resolution{
		Location: &domain.ResolvedLocation{
			Label: top.Label,
			Lat:   top.Point.Lat,
			Lon:   top.Point.Lon,
		},
	}, nil
}
