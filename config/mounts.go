package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyMountModeMap = errors.New("mount mode map must define at least one mount")
	// ValidRewriteModes are the rewrite modes a mount may select
	ValidRewriteModes = [3]string{"inject", "replace", "inject+replace"}
)

// Mount is a path prefix the proxy listens under
// along with the name of the rewrite mode it applies
type Mount struct {
	// Prefix is stripped from the forwarded path, empty for the root mount
	Prefix string
	Mode   string
}

// ParseRawMountModeMap attempts to parse mappings of mount prefix
// to rewrite mode from a string in the format of
// `/override-only>inject,/override-and-replace>inject+replace,>inject`
// returning the parsed mounts ordered longest prefix first so the
// most specific mount is matched first, and error (if any)
func ParseRawMountModeMap(raw string) ([]Mount, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyMountModeMap
	}

	var mounts []Mount
	var combinedErr error
	seen := make(map[string]bool)

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ">")
		if len(parts) != 2 {
			combinedErr = errors.Join(combinedErr, fmt.Errorf("expected mount definition like <prefix>><mode>, got %s", entry))
			continue
		}

		prefix, mode := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		if prefix != "" && (!strings.HasPrefix(prefix, "/") || strings.HasSuffix(prefix, "/")) {
			combinedErr = errors.Join(combinedErr, fmt.Errorf("invalid mount prefix %q, must start and not end with /", prefix))
			continue
		}

		if !isValidRewriteMode(mode) {
			combinedErr = errors.Join(combinedErr, fmt.Errorf("invalid rewrite mode %q for mount %q, supported values are %v", mode, prefix, ValidRewriteModes))
			continue
		}

		if seen[prefix] {
			combinedErr = errors.Join(combinedErr, fmt.Errorf("multiple mounts defined for prefix %q", prefix))
			continue
		}
		seen[prefix] = true

		mounts = append(mounts, Mount{Prefix: prefix, Mode: mode})
	}

	if combinedErr != nil {
		return nil, combinedErr
	}

	if len(mounts) == 0 {
		return nil, ErrEmptyMountModeMap
	}

	sort.SliceStable(mounts, func(i, j int) bool { return len(mounts[i].Prefix) > len(mounts[j].Prefix) })

	return mounts, nil
}

func isValidRewriteMode(mode string) bool {
	for _, valid := range ValidRewriteModes {
		if mode == valid {
			return true
		}
	}
	return false
}
