// Package migration upgrades the shape of stored records at boot.
//
// The engine has two states: Pending(stored version, possibly absent) and
// Current(target). Run applies, in ascending version order, every migration
// whose version is greater than the stored version and not greater than the
// target, then records the target. A failing migration leaves the stored
// version untouched; callers must treat the error as fatal.
//
// Versions compare as dotted numbers, so 1.2.0 < 1.10.0.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/go-version"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/metrics"
	"github.com/mmynk/billbuddy/internal/storage"
)

// Migration is one versioned upgrade step.
// Up must be safe to re-run against its own post-conditions: a crash
// mid-run restarts from the same stored version.
type Migration struct {
	Version     string
	Description string
	Up          func(ctx context.Context, kv storage.KV) error
}

// Engine runs an ordered table of migrations against a key space.
type Engine struct {
	kv         storage.KV
	migrations []Migration
	metrics    *metrics.Metrics
}

// NewEngine creates an Engine over the given migration table.
// The table need not be sorted.
func NewEngine(kv storage.KV, migrations []Migration, m *metrics.Metrics) (*Engine, error) {
	if m == nil {
		m = metrics.NewNop()
	}
	seen := make(map[string]bool, len(migrations))
	for _, mig := range migrations {
		v, err := version.NewVersion(mig.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version %q: %w", mig.Version, err)
		}
		if seen[v.String()] {
			return nil, fmt.Errorf("duplicate migration version %q", mig.Version)
		}
		seen[v.String()] = true
	}

	sorted := append([]Migration(nil), migrations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return version.Must(version.NewVersion(sorted[i].Version)).
			LessThan(version.Must(version.NewVersion(sorted[j].Version)))
	})
	return &Engine{kv: kv, migrations: sorted, metrics: m}, nil
}

// StoredVersion returns the recorded schema version, or "" on a fresh install.
func (e *Engine) StoredVersion(ctx context.Context) (string, error) {
	v, ok, err := e.kv.Get(ctx, storage.KeySchemaVersion)
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// Pending returns the migrations Run would apply for target, in order.
func (e *Engine) Pending(ctx context.Context, target string) ([]Migration, error) {
	targetVersion, err := version.NewVersion(target)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMigrationFailed, err, "invalid target version %q", target)
	}

	stored, err := e.StoredVersion(ctx)
	if err != nil {
		return nil, err
	}
	var storedVersion *version.Version
	if stored != "" {
		storedVersion, err = version.NewVersion(stored)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindMigrationFailed, err, "stored schema version %q is unreadable", stored)
		}
		if storedVersion.GreaterThan(targetVersion) {
			return nil, apperr.New(apperr.KindMigrationFailed,
				"stored schema %s is newer than this build (%s)", stored, target)
		}
	}

	var pending []Migration
	for _, mig := range e.migrations {
		v := version.Must(version.NewVersion(mig.Version))
		if storedVersion != nil && !v.GreaterThan(storedVersion) {
			continue
		}
		if v.GreaterThan(targetVersion) {
			continue
		}
		pending = append(pending, mig)
	}
	return pending, nil
}

// Run brings the stored schema up to target.
// It returns the number of migrations applied.
func (e *Engine) Run(ctx context.Context, target string) (int, error) {
	stored, err := e.StoredVersion(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindMigrationFailed, err, "cannot read schema version")
	}
	pending, err := e.Pending(ctx, target)
	if err != nil {
		return 0, err
	}

	if len(pending) == 0 && stored == target {
		slog.Debug("Schema is current", "version", stored)
		return 0, nil
	}

	slog.Info("Migrating schema", "from", stored, "to", target, "steps", len(pending))
	for _, mig := range pending {
		if err := mig.Up(ctx, e.kv); err != nil {
			slog.Error("Migration failed", "version", mig.Version, "error", err)
			return 0, apperr.Wrap(apperr.KindMigrationFailed, err,
				"migration %s (%s) failed; schema left at %q", mig.Version, mig.Description, stored)
		}
		e.metrics.MigrationsApplied.Inc()
		slog.Info("Migration applied", "version", mig.Version, "description", mig.Description)
	}

	if err := e.kv.Set(ctx, storage.KeySchemaVersion, target); err != nil {
		return 0, apperr.Wrap(apperr.KindMigrationFailed, err, "failed to record schema version %s", target)
	}
	return len(pending), nil
}
