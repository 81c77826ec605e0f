// Package health implements the cached availability gate for the external
// inference service. Availability is treated as a slowly-changing fact: a
// probe runs at most once per TTL window (or on explicit force-check), so
// the scheduler neither slows down on per-task checks nor spams a
// dependency that is already struggling.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// State is the availability verdict for the external inference service.
type State string

// Possible monitor states. A monitor starts Unknown and resolves to Online
// or Offline on its first probe.
const (
	StateUnknown State = "unknown"
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// Status is a point-in-time snapshot of the monitor.
type Status struct {
	State           State     `json:"state"`
	CheckedAt       time.Time `json:"checked_at"`
	Reason          string    `json:"reason,omitempty"`
	AvailableModels []string  `json:"available_models,omitempty"`
}

// Config holds the probe settings.
type Config struct {
	// ModelsEndpoint is the availability endpoint; the response is parsed
	// for a list of available model identifiers.
	ModelsEndpoint string

	// APIKey authenticates the probe request.
	APIKey string

	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration

	// CacheTTL is how long a verdict is trusted before the next access
	// re-probes.
	CacheTTL time.Duration
}

// Monitor polls the external inference endpoint and caches availability
// with a TTL. Refresh happens lazily on access past the TTL or via
// ForceCheck, never on its own background timer.
type Monitor struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	status Status
}

// NewMonitor creates a health monitor in the Unknown state.
func NewMonitor(cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.ProbeTimeout},
		logger: logger.With(slog.String("component", "health_monitor")),
		status: Status{State: StateUnknown},
	}
}

// IsAvailable reports whether the external service is considered online,
// re-probing only when the cached verdict has expired.
func (m *Monitor) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.State == StateUnknown || time.Since(m.status.CheckedAt) >= m.cfg.CacheTTL {
		m.checkLocked(ctx)
	}

	return m.status.State == StateOnline
}

// ForceCheck probes immediately, bypassing the cache, and returns the fresh
// verdict. Used by the admin force-dispatch path.
func (m *Monitor) ForceCheck(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkLocked(ctx)
	return m.status.State == StateOnline
}

// Status returns the current snapshot without triggering a probe.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// modelsResponse is the shape of the availability endpoint's payload.
type modelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// checkLocked runs one bounded probe and records the verdict.
// Callers must hold m.mu.
func (m *Monitor) checkLocked(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	checkedAt := time.Now().UTC()

	models, err := m.probe(probeCtx)
	if err != nil {
		m.status = Status{
			State:     StateOffline,
			CheckedAt: checkedAt,
			Reason:    err.Error(),
		}
		m.logger.Warn("inference service health check failed",
			slog.String("error", err.Error()))
		return
	}

	m.status = Status{
		State:           StateOnline,
		CheckedAt:       checkedAt,
		AvailableModels: models,
	}
	m.logger.Debug("inference service online",
		slog.Int("model_count", len(models)))
}

// probe performs the GET against the models endpoint. Network failure,
// timeout, and non-2xx responses all resolve to Offline.
func (m *Monitor) probe(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.ModelsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}
	if m.cfg.APIKey != "" {
		req.Header.Set("x-goog-api-key", m.cfg.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read probe response: %w", err)
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse probe response: %w", err)
	}

	models := make([]string, 0, len(parsed.Models))
	for _, model := range parsed.Models {
		models = append(models, model.Name)
	}

	return models, nil
}
