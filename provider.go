package video_wall

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrNoMatch           = errors.New("no provider matched the origin URL")
	ErrUnknownProvider   = errors.New("unknown provider")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// Quality selects which rendition of a DynamicResolved feed to resolve.
type Quality string

const (
	QualityLow  Quality = "low"
	QualityHigh Quality = "high"
)

// A Resolver turns an origin (page) URL into a currently-playable manifest URL.
type Resolver interface {
	Resolve(ctx context.Context, originURL string, quality Quality) (string, error)
}

// MatchFunc returns a Resolver for an origin URL it knows how to handle, or an error explaining why it doesn't.
type MatchFunc = func(originURL string) (Resolver, error)

// A Provider matches any origin URL it knows how to handle, giving a Resolver for it.
type Provider struct {
	Name  string
	Match MatchFunc
	// Priority of the matcher, lower (including negative) means matching earlier.
	Priority int16
}

func (p Provider) WithPriority(priority int16) Provider {
	p.Priority = priority
	return p
}

// A Match is the result of a Provider successfully matching an origin URL.
type Match struct {
	ProviderName string
	Resolver     Resolver
}

// A ProviderRegistry is a collection of Provider instances which can be used to try to match origin URLs.
type ProviderRegistry struct {
	providers   []*Provider
	providerMap map[string]*Provider
}

// Add registers a Provider with the ProviderRegistry. Provider.Name and Provider.Match must be set, and
// Provider.Name must be unique within the ProviderRegistry.
func (r *ProviderRegistry) Add(p Provider) error {
	if r.providerMap == nil {
		r.providerMap = make(map[string]*Provider)
	}
	if p.Name == "" || p.Match == nil {
		return ErrInvalidProvider
	}
	if _, ok := r.providerMap[p.Name]; ok {
		return ErrDuplicateProvider
	}
	r.providerMap[p.Name] = &p
	r.providers = append(r.providers, r.providerMap[p.Name])
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})
	return nil
}

// MustAdd wraps Add but panics if there is an error.
func (r *ProviderRegistry) MustAdd(p Provider) {
	if err := r.Add(p); err != nil {
		panic(fmt.Errorf("add provider %q: %w", p.Name, err))
	}
}

// Has reports whether a provider with this name is registered.
func (r *ProviderRegistry) Has(name string) bool {
	_, ok := r.providerMap[name]
	return ok
}

// List returns the names of registered providers in priority order.
func (r *ProviderRegistry) List() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

// Match an origin URL against each Provider in priority order. If none match, the returned error wraps ErrNoMatch
// along with why each provider declined.
func (r *ProviderRegistry) Match(originURL string) (*Match, error) {
	result := multierror.Append(nil, ErrNoMatch)
	for _, p := range r.providers {
		resolver, err := p.Match(originURL)
		if resolver != nil && err == nil {
			return &Match{ProviderName: p.Name, Resolver: resolver}, nil
		}
		if err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		}
	}
	return nil, result
}

// MatchWith will attempt to match an origin URL against a specific provider.
func (r *ProviderRegistry) MatchWith(name string, originURL string) (*Match, error) {
	p, ok := r.providerMap[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	resolver, err := p.Match(originURL)
	if err != nil {
		return nil, fmt.Errorf("%w: [%v] %v", ErrNoMatch, p.Name, err)
	}
	if resolver == nil {
		return nil, ErrNoMatch
	}
	return &Match{ProviderName: p.Name, Resolver: resolver}, nil
}
