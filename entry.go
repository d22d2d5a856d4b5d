// Package papershelf manages a personal library of bibliographic references:
// a BibTeX database describing each paper, a directory tree of PDFs named
// AuthorYearBlurb.pdf, and an append-only tag file.
package papershelf

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is a single bibliographic record: a unique id, a BibTeX entry class,
// and an open-ended set of attributes held as raw strings. No macro expansion
// or escape decoding is applied; values are preserved exactly as they appear
// in the source.
type Entry struct {
	// ID is the entry key, case-sensitive as stored.
	ID string `json:"id"`

	// Type is the BibTeX entry class (article, inproceedings, ...).
	Type string `json:"type"`

	// Attributes maps attribute names to raw values (author, year, title,
	// journal, institution, ...).
	Attributes map[string]string `json:"attributes"`

	// Tags holds free-text tags merged in from the tag store after parsing.
	// A nil slice means the entry has no tag line, which is distinct from
	// an empty set. Tags are loaded fresh each run and never cached.
	Tags []string `json:"tags,omitempty"`
}

// Attr returns the named attribute value and whether it is present.
func (e *Entry) Attr(name string) (string, bool) {
	v, ok := e.Attributes[name]
	return v, ok
}

// BibTeX renders the entry back to BibTeX source form with attributes in
// sorted order. Attribute values round-trip verbatim.
func (e *Entry) BibTeX() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s {%s,\n", e.Type, e.ID)
	for _, name := range sortedKeys(e.Attributes) {
		fmt.Fprintf(&sb, "    %s = {%s},\n", name, e.Attributes[name])
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Library is the full collection of parsed entries for one run, keyed by
// entry id. Ids are expected to be unique in the source; when they are not,
// the last occurrence wins and the duplicate is reported by the parser.
type Library map[string]*Entry

// IDs returns all entry ids in sorted order.
func (l Library) IDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Values collects the raw values of the named attributes across all entries,
// in sorted-id order. Entries rejected by the filter (when non-nil) are
// skipped, as are entries missing the attribute.
func (l Library) Values(filter func(*Entry) bool, names ...string) []string {
	var values []string
	for _, id := range l.IDs() {
		entry := l[id]
		if filter != nil && !filter(entry) {
			continue
		}
		for _, name := range names {
			if v, ok := entry.Attributes[name]; ok {
				values = append(values, v)
			}
		}
	}
	return values
}

// Organizations returns every institution and school value.
func (l Library) Organizations() []string {
	return l.Values(nil, "institution", "school")
}

// Publishers returns every publisher value.
func (l Library) Publishers() []string {
	return l.Values(nil, "publisher")
}

// Journals returns every journal value.
func (l Library) Journals() []string {
	return l.Values(nil, "journal")
}

// Conferences returns the booktitle of every inproceedings entry.
func (l Library) Conferences() []string {
	return l.Values(func(e *Entry) bool { return e.Type == "inproceedings" }, "booktitle")
}

// People returns every individual author and editor, split on the BibTeX
// " and " delimiter.
func (l Library) People() []string {
	var people []string
	for _, value := range l.Values(nil, "author", "editor") {
		people = append(people, SplitPeople(value)...)
	}
	return people
}

// SplitPeople splits a BibTeX author or editor value into individual people
// on the literal " and " delimiter.
func SplitPeople(value string) []string {
	return strings.Split(value, " and ")
}

// PublicURL computes the public URL of a paper on the remote host.
// The layout mirrors the library directory: papers are grouped into
// subdirectories by the lowercased first letter of their stem.
func PublicURL(host, stem string) string {
	if stem == "" {
		return "https://" + host + "/papers"
	}
	letter := strings.ToLower(stem[:1])
	return fmt.Sprintf("https://%s/papers/%s/%s.pdf", host, letter, stem)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
