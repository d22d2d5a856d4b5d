// Package tags reads and appends the line-oriented tag file. Each line is an
// entry id followed by whitespace-separated tags. The file is append-only:
// tagging the same id twice produces two lines, and readers union all lines
// for an id.
package tags

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papershelf/papershelf"
)

// Read loads the tag file and returns the union of tags per entry id, each
// set sorted. A missing file yields an empty mapping; tags are optional.
func Read(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("opening tag file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sets := make(map[string]map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		id := fields[0]
		set, ok := sets[id]
		if !ok {
			set = make(map[string]struct{})
			sets[id] = set
		}
		for _, tag := range fields[1:] {
			set[tag] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tag file: %w", err)
	}

	result := make(map[string][]string, len(sets))
	for id, set := range sets {
		list := make([]string, 0, len(set))
		for tag := range set {
			list = append(list, tag)
		}
		sort.Strings(list)
		result[id] = list
	}
	return result, nil
}

// Append adds a single tag line for the given id. Existing lines are never
// rewritten or deduplicated.
func Append(path, id string, tagList []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating tag file directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening tag file: %w", err)
	}
	defer func() { _ = f.Close() }()

	line := strings.Join(append([]string{id}, tagList...), " ") + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("appending tag line: %w", err)
	}
	return nil
}

// Apply merges tag sets onto matching library entries. Entries with no tag
// line are left untouched; ids with no matching entry are ignored.
func Apply(library papershelf.Library, byID map[string][]string) {
	for id, tagList := range byID {
		if entry, ok := library[id]; ok {
			entry.Tags = tagList
		}
	}
}

// All returns the sorted union of every tag in the mapping, compared
// case-insensitively for ordering.
func All(byID map[string][]string) []string {
	set := make(map[string]struct{})
	for _, tagList := range byID {
		for _, tag := range tagList {
			set[tag] = struct{}{}
		}
	}
	all := make([]string, 0, len(set))
	for tag := range set {
		all = append(all, tag)
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i]) < strings.ToLower(all[j])
	})
	return all
}
