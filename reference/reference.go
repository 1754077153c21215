// Package reference loads the static unified-city directory plus airport and
// suburb alias tables, and exposes the normalization and lookup primitives
// every other component builds city identity on (spec §4.A). Assets are
// loaded once per process and held as shared immutable state, following the
// teacher corpus's memoize-at-load idiom.
package reference

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/sakha-transit/tripgraph/cache"
)

// UnifiedCity is one row of the static city directory (spec §6).
type UnifiedCity struct {
	Name          string  `json:"name"`
	IsFederalCity bool    `json:"isFederalCity"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// Store holds the loaded reference tables and their normalized-key indexes.
// All fields are populated once at Load and never mutated afterward, so a
// *Store may be shared across goroutines without further locking.
type Store struct {
	cities       []UnifiedCity
	byNormalized map[string]UnifiedCity
	airports     map[string]string // normalized airport name -> city name
	suburbs      map[string]string // normalized suburb name -> main city name

	normalizeCache *cache.LookupCache
}

var (
	once     sync.Once
	instance *Store
	loadErr  error
)

// Load reads the three static JSON assets and builds the in-memory indexes.
// It does not memoize: callers that want the process-wide singleton should
// use LoadOnce.
func Load(citiesPath, airportsPath, suburbsPath string) (*Store, error) {
	var cities []UnifiedCity
	if err := readJSON(citiesPath, &cities); err != nil {
		return nil, fmt.Errorf("reference: loading unified cities: %w", err)
	}

	var airportRows map[string]string
	if err := readJSON(airportsPath, &airportRows); err != nil {
		return nil, fmt.Errorf("reference: loading airports: %w", err)
	}

	var suburbRows map[string]string
	if err := readJSON(suburbsPath, &suburbRows); err != nil {
		return nil, fmt.Errorf("reference: loading suburbs: %w", err)
	}

	s := &Store{
		cities:         cities,
		byNormalized:   make(map[string]UnifiedCity, len(cities)),
		airports:       make(map[string]string, len(airportRows)),
		suburbs:        make(map[string]string, len(suburbRows)),
		normalizeCache: cache.New(4096),
	}
	for _, c := range cities {
		s.byNormalized[NormalizeCityName(c.Name)] = c
	}
	for airport, city := range airportRows {
		s.airports[NormalizeCityName(airport)] = city
	}
	for suburb, city := range suburbRows {
		s.suburbs[NormalizeCityName(suburb)] = city
	}

	return s, nil
}

// LoadOnce loads the reference tables exactly once per process and returns
// the shared instance on every subsequent call (spec §5 "loaded once and
// memoized for process lifetime").
func LoadOnce(citiesPath, airportsPath, suburbsPath string) (*Store, error) {
	once.Do(func() {
		instance, loadErr = Load(citiesPath, airportsPath, suburbsPath)
	})
	return instance, loadErr
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // reference asset paths are operator-controlled config
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// UnifiedCityByNormalizedName returns the reference row for a normalized
// city name.
func (s *Store) UnifiedCityByNormalizedName(normalized string) (UnifiedCity, bool) {
	c, ok := s.byNormalized[normalized]
	return c, ok
}

// IsCityInReference reports whether the given (already normalized) cityId
// appears in the unified directory.
func (s *Store) IsCityInReference(normalizedCityID string) bool {
	_, ok := s.byNormalized[normalizedCityID]
	return ok
}

// Normalize is a memoized wrapper around NormalizeCityName: the graph
// builder and virtual-entities worker call it on the same handful of city
// names thousands of times per run, so the LRU avoids re-running the regexes
// on every edge and stop.
func (s *Store) Normalize(raw string) string {
	return s.normalizeCache.GetOrCompute(raw, func() interface{} {
		return NormalizeCityName(raw)
	}).(string)
}

// GetAllFederalCities returns every reference row with IsFederalCity=true.
func (s *Store) GetAllFederalCities() []UnifiedCity {
	out := make([]UnifiedCity, 0, len(s.cities))
	for _, c := range s.cities {
		if c.IsFederalCity {
			out = append(out, c)
		}
	}
	return out
}

// GetAllYakutiaCities returns every reference row with IsFederalCity=false.
func (s *Store) GetAllYakutiaCities() []UnifiedCity {
	out := make([]UnifiedCity, 0, len(s.cities))
	for _, c := range s.cities {
		if !c.IsFederalCity {
			out = append(out, c)
		}
	}
	return out
}

// GetCityByAirportName resolves an airport alias to its serving city name.
func (s *Store) GetCityByAirportName(airportName string) (string, bool) {
	city, ok := s.airports[NormalizeCityName(airportName)]
	return city, ok
}

// GetMainCityBySuburb resolves a suburb alias to its main city name.
func (s *Store) GetMainCityBySuburb(suburbName string) (string, bool) {
	city, ok := s.suburbs[NormalizeCityName(suburbName)]
	return city, ok
}

// DisplayCityName resolves a normalized cityId back to the original-form
// name carried in the unified directory (spec §4.H step 5 "extracting the
// city via the name parser"). Falls back to stripping the "г." marker off
// rawName, for cities absent from the directory.
func (s *Store) DisplayCityName(cityID, rawName string) string {
	if c, ok := s.byNormalized[cityID]; ok {
		return c.Name
	}
	return strings.TrimSpace(cityPrefixRe.ReplaceAllString(rawName, ""))
}

var (
	cityPrefixRe = regexp.MustCompile(`^г(\.\s*|\s+)`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
	dashRunRe    = regexp.MustCompile(`-+`)
)

// NormalizeCityName is the canonical city-identity normalization every
// cityId comparison and id-generation routine must pass through (spec §4.A):
// lowercase, trim, strip a leading "г." marker, fold ё→е, collapse
// whitespace, and drop characters that are neither word characters,
// Cyrillic, nor hyphens.
func NormalizeCityName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = cityPrefixRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "ё", "е")
	s = spaceRunRe.ReplaceAllString(s, " ")

	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '-' || isCyrillic(r) || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(b.String(), " "))
}

func isCyrillic(r rune) bool {
	return (r >= 0x0400 && r <= 0x04FF) || (r >= 0x0500 && r <= 0x052F)
}

// GenerateStableID builds the deterministic id used for virtual stops,
// virtual routes, and generated flights/air-routes (spec §4.E stable-id
// rule). It first normalizes each part with NormalizeCityName, then replaces
// every non-word, non-Cyrillic character with a dash, collapses repeated
// dashes, and trims leading/trailing dashes. If normalization strips every
// input to nothing, a short hash of the original joined text is substituted
// so the function never returns an empty string.
func GenerateStableID(parts ...string) string {
	joined := strings.Join(parts, " ")
	normalized := NormalizeCityName(joined)

	var b strings.Builder
	for _, r := range normalized {
		if isCyrillic(r) || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	id := strings.ToLower(strings.Trim(dashRunRe.ReplaceAllString(b.String(), "-"), "-"))
	if id != "" {
		return id
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(joined))
	return fmt.Sprintf("id-%x", h.Sum32())
}
