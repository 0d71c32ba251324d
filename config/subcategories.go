package config

import (
	// Go Internal Packages
	"fmt"
	"sort"
	"strconv"
)

// SubCategories maps a sub-category tag (e.g. mobile_postpaid) to the
// upstream operator ids that belong to it. The upstream catalog carries no
// field that separates these sub-categories, so the table has to be
// maintained by hand whenever the biller adds or retires operators. Bump
// Version on every edit.
type SubCategories struct {
	Version string           `koanf:"version"`
	Tags    map[string][]int `koanf:"tags"`
}

// Validate checks that every tag has at least one id and no id is repeated
// within a tag.
func (s SubCategories) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	for tag, ids := range s.Tags {
		if len(ids) == 0 {
			return fmt.Errorf("tag %s has no operator ids", tag)
		}
		seen := make(map[int]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				return fmt.Errorf("tag %s repeats operator id %d", tag, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// Lookup returns the allow-list for tag as a set of operator id strings.
func (s SubCategories) Lookup(tag string) (map[string]struct{}, bool) {
	ids, ok := s.Tags[tag]
	if !ok {
		return nil, false
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[strconv.Itoa(id)] = struct{}{}
	}
	return set, true
}

// Names returns the configured tags in sorted order.
func (s SubCategories) Names() []string {
	names := make([]string, 0, len(s.Tags))
	for tag := range s.Tags {
		names = append(names, tag)
	}
	sort.Strings(names)
	return names
}
