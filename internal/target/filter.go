package target

import (
	"fmt"
	"path"
	"slices"

	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/rileyhilliard/scatter/internal/util"
)

// Filter narrows the inventory before resolution. The zero Filter keeps
// everything.
type Filter struct {
	// Tags keeps hosts carrying at least one of these tags.
	Tags []string
	// ExcludeTags drops hosts carrying any of these tags.
	ExcludeTags []string
	// HostPatterns keeps hosts whose name matches at least one glob
	// (path.Match syntax).
	HostPatterns []string
}

// IsZero reports whether the filter keeps every host.
func (f Filter) IsZero() bool {
	return len(f.Tags) == 0 && len(f.ExcludeTags) == 0 && len(f.HostPatterns) == 0
}

// Validate checks the glob patterns compile.
func (f Filter) Validate() error {
	for _, p := range f.HostPatterns {
		if _, err := path.Match(p, ""); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Bad --hosts pattern %q", p),
				"Patterns use shell glob syntax: *, ?, [a-z].")
		}
	}
	return nil
}

// Match reports whether h survives the filter.
func (f Filter) Match(h config.HostEntry) bool {
	for _, tag := range f.ExcludeTags {
		if h.HasTag(tag) {
			return false
		}
	}

	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if h.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.HostPatterns) > 0 {
		for _, p := range f.HostPatterns {
			if ok, _ := path.Match(p, h.Host); ok {
				return true
			}
		}
		return false
	}

	return true
}

// Apply returns the entries that match, in input order.
func (f Filter) Apply(hosts []config.HostEntry) ([]config.HostEntry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.IsZero() {
		return hosts, nil
	}

	var kept []config.HostEntry
	for _, h := range hosts {
		if f.Match(h) {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("No hosts left after filtering (%d %s in inventory)",
				len(hosts), util.Pluralize(len(hosts), "host", "hosts")),
			f.suggestion(hosts))
	}
	return kept, nil
}

// suggestion points at --tag values no host carries, with near matches.
func (f Filter) suggestion(hosts []config.HostEntry) string {
	known := inventoryTags(hosts)
	for _, tag := range f.Tags {
		if slices.Contains(known, tag) {
			continue
		}
		if similar := util.SuggestSimilar(tag, known, 3); len(similar) > 0 {
			return fmt.Sprintf("No host has tag '%s'. Did you mean '%s'?", tag, similar[0])
		}
		return fmt.Sprintf("No host has tag '%s'. Inventory tags: %s", tag, util.JoinOrNone(known))
	}
	return "Check the --tag, --exclude-tag and --hosts values against the inventory."
}

// inventoryTags lists every tag in first-seen order.
func inventoryTags(hosts []config.HostEntry) []string {
	var tags []string
	for _, h := range hosts {
		for _, tag := range h.Tags {
			if !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}
