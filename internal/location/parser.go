package location

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentRegex is used to parse a single segment of a path, e.g., `name` or `name[1]`.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)

// isValidSegmentName checks for undesirable but technically valid names.
func isValidSegmentName(name string) bool {
	return name != "-" && name != "_"
}

// ParsePath creates a Path by parsing its canonical string representation.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("provenance path cannot be empty")
	}

	var path Path
	for _, segmentStr := range strings.Split(raw, ".") {
		if segmentStr == "" {
			return nil, fmt.Errorf("provenance path contains empty segment")
		}

		matches := segmentRegex.FindStringSubmatch(segmentStr)
		if matches == nil {
			return nil, fmt.Errorf("invalid path segment format: %q", segmentStr)
		}

		name := matches[1]
		if !isValidSegmentName(name) {
			return nil, fmt.Errorf("invalid segment name: %q", name)
		}

		segment := NewPathSegment(name)
		if matches[2] != "" {
			index, err := strconv.Atoi(matches[2])
			if err != nil {
				return nil, fmt.Errorf("invalid segment index %q: %w", matches[2], err)
			}
			segment.Index = index
		}
		path = append(path, segment)
	}

	return path, nil
}

// Parse reads a location in the `@` + 32 hex digit form produced by
// Location.String.
func Parse(raw string) (Location, error) {
	if !strings.HasPrefix(raw, "@") || len(raw) != 33 {
		return Location{}, fmt.Errorf("invalid location %q: expected '@' followed by 32 hex digits", raw)
	}
	b, err := hex.DecodeString(raw[1:])
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: %w", raw, err)
	}
	return fromBytes(b), nil
}
