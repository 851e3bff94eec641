package labs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// ErrUnknownLab is returned when no engine is registered for a lab id.
var ErrUnknownLab = errors.New("unknown lab")

// EngineInput is the uniform input passed to every lab engine.
type EngineInput struct {
	CompanyID  string
	Company    *models.Company
	WebsiteURL string
	Context    *models.CompanyContextGraph
}

// EngineResult is the uniform result shape every lab engine returns. A
// failed engine sets Success false and Error; it should not return a Go
// error for analysis-level failures.
type EngineResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Score   float64        `json:"score,omitempty"`
}

// Engine is a single diagnostic lab engine.
type Engine interface {
	Run(ctx context.Context, input EngineInput) (*EngineResult, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, input EngineInput) (*EngineResult, error)

// Run implements Engine.
func (f EngineFunc) Run(ctx context.Context, input EngineInput) (*EngineResult, error) {
	return f(ctx, input)
}

// Registry is the registered-function map from lab ids to engines, built
// once at startup. Unknown ids resolve to ErrUnknownLab rather than a
// silent synthetic success.
type Registry struct {
	mu      sync.RWMutex
	engines map[models.LabID]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[models.LabID]Engine)}
}

// Register adds or replaces the engine for a lab id.
func (r *Registry) Register(id models.LabID, engine Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[id] = engine
}

// Get resolves the engine for a lab id.
func (r *Registry) Get(id models.LabID) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLab, id)
	}
	return engine, nil
}

// Registered lists every lab id with a registered engine.
func (r *Registry) Registered() []models.LabID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]models.LabID, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	return ids
}

// NormalizeWebsiteURL canonicalizes a company website URL: ensures a scheme,
// lowercases the host, strips a trailing slash. Empty input stays empty.
func NormalizeWebsiteURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	url = strings.TrimSuffix(url, "/")

	// Lowercase scheme and host only, the path may be case-sensitive.
	schemeEnd := strings.Index(url, "://") + 3
	hostEnd := strings.Index(url[schemeEnd:], "/")
	if hostEnd == -1 {
		return strings.ToLower(url)
	}
	hostEnd += schemeEnd
	return strings.ToLower(url[:hostEnd]) + url[hostEnd:]
}
