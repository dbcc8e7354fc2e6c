// Package pathmap translates save paths between the source and target
// clients when they see the same storage under different mount points.
package pathmap

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
)

// Rule rewrites paths starting with From so they start with To instead.
type Rule struct {
	From string
	To   string
}

// Mapper applies the longest matching rule to a path.
type Mapper struct {
	rules []Rule
}

var (
	// ErrPathMissing is returned by Verify when the mapped path does not exist.
	ErrPathMissing = errors.New("mapped path does not exist")

	// ErrDeviceUnknown is returned by Verify when both paths exist but
	// their filesystems could not be compared.
	ErrDeviceUnknown = errors.New("could not compare filesystems")
)

var deviceCheck = sameDevice

// New builds a mapper. Rules with an empty From are rejected.
func New(rules []Rule) (*Mapper, error) {
	cleaned := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.From) == "" {
			return nil, fmt.Errorf("path mapping has empty from")
		}
		cleaned = append(cleaned, Rule{From: cleanPath(r.From), To: cleanPath(r.To)})
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i].From) > len(cleaned[j].From)
	})
	return &Mapper{rules: cleaned}, nil
}

// Map returns p rewritten by the first matching rule, and whether a rule
// matched. Matching respects path boundaries, so /data does not match
// /database.
func (m *Mapper) Map(p string) (string, bool) {
	if m == nil || p == "" {
		return p, false
	}
	trailing := strings.HasSuffix(p, "/") && len(p) > 1
	clean := cleanPath(p)

	for _, r := range m.rules {
		var rest string
		switch {
		case clean == r.From:
		case r.From == "/":
			rest = strings.TrimPrefix(clean, "/")
		case strings.HasPrefix(clean, r.From+"/"):
			rest = clean[len(r.From)+1:]
		default:
			continue
		}

		out := r.To
		if rest != "" {
			out = path.Join(r.To, rest)
		}
		if trailing && !strings.HasSuffix(out, "/") {
			out += "/"
		}
		return out, true
	}
	return p, false
}

// Len returns the number of rules.
func (m *Mapper) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Verify checks that target exists on this host and reports whether it
// lives on the same filesystem as source. sameFS is false when source is
// not reachable locally. An error wrapping ErrDeviceUnknown means the
// target exists and only the filesystem comparison failed.
func Verify(source, target string) (sameFS bool, err error) {
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", ErrPathMissing, target)
		}
		return false, fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if _, err := os.Stat(source); err != nil {
		return false, nil
	}
	same, err := deviceCheck(source, target)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrDeviceUnknown, err)
	}
	return same, nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}
