// Package conflict decides what to keep when the local and remote copies of
// a record disagree.
package conflict

import (
	"maps"
	"strings"
	"time"

	"github.com/mmynk/billbuddy/internal/apperr"
)

// Strategy names a conflict policy.
type Strategy string

const (
	// StrategyLocal keeps the local copy. The device that made the edit wins.
	StrategyLocal Strategy = "local"
	// StrategyRemote keeps the remote copy.
	StrategyRemote Strategy = "remote"
	// StrategyMerge overlays remote fields on the local copy and stamps lastModified.
	StrategyMerge Strategy = "merge"
	// StrategyManual resolves nothing; a person has to choose.
	StrategyManual Strategy = "manual"
)

// DefaultStrategy is used by automatic drains.
const DefaultStrategy = StrategyLocal

// ParseStrategy parses a configured strategy name. Empty means DefaultStrategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return DefaultStrategy, nil
	case StrategyLocal, StrategyRemote, StrategyMerge, StrategyManual:
		return st, nil
	}
	return "", apperr.Validationf("unknown conflict strategy %q", s)
}

// Resolve returns the record to keep. ok is false only for StrategyManual.
// Neither input is modified.
func Resolve(local, remote map[string]any, strategy Strategy, now time.Time) (resolved map[string]any, ok bool, err error) {
	switch strategy {
	case StrategyLocal:
		return maps.Clone(local), true, nil
	case StrategyRemote:
		return maps.Clone(remote), true, nil
	case StrategyMerge:
		merged := make(map[string]any, len(local)+len(remote)+1)
		maps.Copy(merged, local)
		maps.Copy(merged, remote)
		merged["lastModified"] = now.UTC().Format(time.RFC3339Nano)
		return merged, true, nil
	case StrategyManual:
		return nil, false, nil
	}
	return nil, false, apperr.Validationf("unknown conflict strategy %q", strategy)
}
