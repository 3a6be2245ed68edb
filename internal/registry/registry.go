package registry

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"social-scraper/internal/link"
	"social-scraper/internal/platform/facebook"
	"social-scraper/internal/platform/instagram"
	"social-scraper/internal/platform/tiktok"
	"social-scraper/internal/platform/youtube"
	"social-scraper/pkg/models"
)

// Strategy is the extraction routine bound to one (platform, kind) pair
type Strategy struct {
	ID        string
	Platform  models.Platform
	Kind      models.Kind
	Extractor models.Extractor
}

// StrategyID returns the "<platform>/<kind>" identifier of a pair
func StrategyID(platform models.Platform, kind models.Kind) string {
	return fmt.Sprintf("%s/%s", platform, kind)
}

type key struct {
	platform models.Platform
	kind     models.Kind
}

// Registry is the dispatch table from (platform, kind) to a strategy.
// It is populated at startup and read-only afterwards.
type Registry struct {
	strategies map[key]Strategy
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[key]Strategy),
	}
}

// NewDefault registers the YouTube, Instagram, TikTok and Facebook
// extractors for both link kinds
func NewDefault(logger *zerolog.Logger) (*Registry, error) {
	r := NewRegistry()

	extractors := []models.Extractor{
		youtube.NewExtractor(logger),
		instagram.NewExtractor(logger),
		tiktok.NewExtractor(logger),
		facebook.NewExtractor(logger),
	}
	for _, e := range extractors {
		if err := r.RegisterExtractor(e); err != nil {
			return nil, fmt.Errorf("error registering %s extractor: %w", e.Platform(), err)
		}
	}

	if missing := r.CheckTotality(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", models.ErrNoExtractorRegistered, missing)
	}
	return r, nil
}

// Register binds extractor to a (platform, kind) pair
func (r *Registry) Register(platform models.Platform, kind models.Kind, extractor models.Extractor) error {
	if extractor == nil {
		return fmt.Errorf("extractor cannot be nil")
	}
	if kind == models.KindInvalid || platform == models.PlatformUnknown {
		return fmt.Errorf("cannot register a strategy for %s", StrategyID(platform, kind))
	}
	if !extractor.Supports(kind) {
		return fmt.Errorf("extractor for %s does not support %s links", extractor.Platform(), kind)
	}
	k := key{platform, kind}
	if _, exists := r.strategies[k]; exists {
		return fmt.Errorf("strategy %s already registered", StrategyID(platform, kind))
	}

	r.strategies[k] = Strategy{
		ID:        StrategyID(platform, kind),
		Platform:  platform,
		Kind:      kind,
		Extractor: extractor,
	}
	return nil
}

// RegisterExtractor registers extractor for every kind it supports
func (r *Registry) RegisterExtractor(extractor models.Extractor) error {
	if extractor == nil {
		return fmt.Errorf("extractor cannot be nil")
	}
	for _, kind := range models.Kinds() {
		if !extractor.Supports(kind) {
			continue
		}
		if err := r.Register(extractor.Platform(), kind, extractor); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the strategy for a classified link
func (r *Registry) Lookup(platform models.Platform, kind models.Kind) (Strategy, error) {
	s, ok := r.strategies[key{platform, kind}]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %s", models.ErrNoExtractorRegistered, StrategyID(platform, kind))
	}
	return s, nil
}

// CheckTotality returns the strategy IDs of every (platform, kind) pair the
// link grammar can produce that has no strategy
func (r *Registry) CheckTotality() []string {
	reachable := make(map[key]bool)
	for _, ex := range link.Examples() {
		reachable[key{ex.Platform, ex.Kind}] = true
	}
	for _, p := range models.Platforms() {
		for _, k := range models.Kinds() {
			reachable[key{p, k}] = true
		}
	}

	var missing []string
	for k := range reachable {
		if _, ok := r.strategies[k]; !ok {
			missing = append(missing, StrategyID(k.platform, k.kind))
		}
	}
	sort.Strings(missing)
	return missing
}

// Strategies returns every registered strategy ordered by ID
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlatformInfo describes one supported platform
type PlatformInfo struct {
	Name     models.Platform          `json:"name"`
	Domains  []string                 `json:"domains"`
	Kinds    []models.Kind            `json:"kinds"`
	Fields   map[models.Kind][]string `json:"fields"`
	Examples []string                 `json:"examples"`
}

// GetPlatformInfo returns information about all registered platforms
func (r *Registry) GetPlatformInfo() []PlatformInfo {
	domains := make(map[models.Platform][]string)
	for domain, p := range link.Domains() {
		domains[p] = append(domains[p], domain)
	}
	examples := make(map[models.Platform][]string)
	for _, ex := range link.Examples() {
		examples[ex.Platform] = append(examples[ex.Platform], ex.URL)
	}

	var info []PlatformInfo
	for _, p := range models.Platforms() {
		pi := PlatformInfo{
			Name:     p,
			Domains:  domains[p],
			Fields:   make(map[models.Kind][]string),
			Examples: examples[p],
		}
		sort.Strings(pi.Domains)
		for _, k := range models.Kinds() {
			if s, ok := r.strategies[key{p, k}]; ok {
				pi.Kinds = append(pi.Kinds, k)
				pi.Fields[k] = s.Extractor.Fields(k)
			}
		}
		if len(pi.Kinds) > 0 {
			info = append(info, pi)
		}
	}
	return info
}
