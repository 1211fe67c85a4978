// Package resolve locates an Ember worker's current network address.
// The Tracker's registry is authoritative because worker addresses change
// across restarts; the locally configured address is a degraded fallback
// that must never silently mask drift.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ShayCichocki/hearth/internal/tracker"
	"github.com/ShayCichocki/hearth/pkg/models"
)

// Source tags where a resolution came from.
type Source string

const (
	// SourceRegistry means the Tracker's worker registry supplied the URL.
	SourceRegistry Source = "registry"
	// SourceConfig means local configuration supplied the URL.
	SourceConfig Source = "config"
)

// Resolution is the ephemeral result of resolving one worker.
type Resolution struct {
	// URL is the worker's resolved base URL.
	URL string
	// Source tags which source supplied the URL.
	Source Source
	// Warnings describes degraded conditions hit along the way (drift,
	// unreachable registry, stale fallback). Empty on a clean resolution.
	Warnings []string
}

// Error reports that no address could be resolved from any source.
type Error struct {
	Worker string
}

func (e *Error) Error() string {
	return fmt.Sprintf("no address found for worker %q: the worker process may be down, the tracker may be unreachable, or the worker may never have registered", e.Worker)
}

// RegistryLookup is the slice of the Tracker client resolution needs.
type RegistryLookup interface {
	LookupWorker(ctx context.Context, name string) (*models.WorkerRegistration, error)
}

// Resolve finds the current address for workerName. The registry wins when
// reachable; a differing fallback produces a drift warning naming both
// values. When the registry misses or fails, a non-empty fallbackURL is
// returned with a staleness warning. With neither source, *Error is
// returned. registry may be nil when no Tracker client is available.
func Resolve(ctx context.Context, workerName string, registry RegistryLookup, fallbackURL string) (*Resolution, error) {
	var warnings []string

	if registry != nil {
		reg, err := registry.LookupWorker(ctx, workerName)
		if err == nil && reg.Address != "" {
			if fallbackURL != "" && reg.Address != fallbackURL {
				warnings = append(warnings, fmt.Sprintf(
					"worker %s address drift: registry reports %s but local config has %s; using registry",
					workerName, reg.Address, fallbackURL))
			}
			return &Resolution{URL: reg.Address, Source: SourceRegistry, Warnings: warnings}, nil
		}
		if err != nil && !isNotFound(err) {
			warnings = append(warnings, fmt.Sprintf(
				"tracker registry unreachable while resolving %s: %v", workerName, err))
		}
	}

	if fallbackURL != "" {
		warnings = append(warnings, fmt.Sprintf(
			"using configured address %s for worker %s, which may be stale", fallbackURL, workerName))
		return &Resolution{URL: fallbackURL, Source: SourceConfig, Warnings: warnings}, nil
	}

	return nil, &Error{Worker: workerName}
}

// isNotFound reports whether the registry answered but has no entry, as
// opposed to being unreachable. A plain miss carries no warning of its own.
func isNotFound(err error) bool {
	var apiErr *tracker.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
