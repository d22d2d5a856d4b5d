// Package lint runs heuristic validation passes over a parsed library. The
// four checks are independent and order-insensitive, and each is exposed as a
// pure function over a single entry so it can be refined without regressing
// the others. Violations are data issues: they are printed as plain
// diagnostic lines, never raised as errors.
package lint

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/papershelf/papershelf"
)

var (
	// namePattern matches "<First> <First2> ... <Last>": a greedy run of
	// capitalized tokens followed by the remainder, reordered by
	// SuggestName into "Last, First" form.
	namePattern = regexp.MustCompile(`([A-Z][^ ]*(?: [A-Z][^ ]*)*) (.*)`)

	// accentPattern matches BibTeX accent escapes like \'{e} or \"{u},
	// capturing the bare character.
	accentPattern = regexp.MustCompile(`\\.\{(.)\}`)

	nonAlnumPattern = regexp.MustCompile(`[^0-9A-Za-z]`)

	braceGroupPattern = regexp.MustCompile(`\{[^{}]*\}`)
	hyphenCapPattern  = regexp.MustCompile(`[-/][A-Z]`)
	caseShiftPattern  = regexp.MustCompile(`[a-z][A-Z]`)
)

// NameFinding reports an author or editor value with people not in
// "Last, First" form, along with a suggested rewrite.
type NameFinding struct {
	Attribute string
	Current   string
	Suggested string
}

// IDFinding reports an entry whose id does not prefix-match the id derived
// from its metadata. Both forms are lowercased for display.
type IDFinding struct {
	Current string
	Derived string
}

// SuggestName reorders a "First Last" person into "Last, First" form. A
// person the pattern cannot match is returned unchanged.
func SuggestName(person string) string {
	return namePattern.ReplaceAllString(person, "$2, $1")
}

// CheckNames validates the author and editor attributes of one entry.
// Values listed in the organizational-exception table are exempt, as are
// individual people listed there. People already containing a comma are
// assumed correct and left untouched in the suggestion.
func CheckNames(entry *papershelf.Entry, orgs map[string]string) []NameFinding {
	var findings []NameFinding
	for _, attr := range []string{"author", "editor"} {
		value, ok := entry.Attributes[attr]
		if !ok {
			continue
		}
		if _, ok := orgs[value]; ok {
			continue
		}

		people := papershelf.SplitPeople(value)
		offending := false
		for _, person := range people {
			if _, ok := orgs[person]; ok {
				continue
			}
			if !strings.Contains(person, ",") {
				offending = true
				break
			}
		}
		if !offending {
			continue
		}

		suggestions := make([]string, len(people))
		for i, person := range people {
			_, isOrg := orgs[person]
			if isOrg || strings.Contains(person, ",") {
				suggestions[i] = person
			} else {
				suggestions[i] = SuggestName(person)
			}
		}
		findings = append(findings, NameFinding{
			Attribute: attr,
			Current:   value,
			Suggested: strings.Join(suggestions, " and "),
		})
	}
	return findings
}

// DeriveID computes the expected entry id, first-author-surname + year +
// title, with accent escapes flattened and non-alphanumerics removed.
// ok is false when the entry is missing author, year, or title; such entries
// are skipped, not flagged.
func DeriveID(entry *papershelf.Entry, orgs map[string]string) (string, bool) {
	author, ok := entry.Attributes["author"]
	if !ok {
		return "", false
	}
	year, ok := entry.Attributes["year"]
	if !ok {
		return "", false
	}
	title, ok := entry.Attributes["title"]
	if !ok {
		return "", false
	}

	var surname string
	if abbrev, ok := orgs[author]; ok {
		surname = abbrev
	} else {
		first := papershelf.SplitPeople(author)[0]
		if abbrev, ok := orgs[first]; ok {
			surname = abbrev
		} else {
			surname, _, _ = strings.Cut(first, ",")
		}
	}

	id := surname + year + title
	id = accentPattern.ReplaceAllString(id, "$1")
	id = nonAlnumPattern.ReplaceAllString(id, "")
	return id, true
}

// SuffixSet holds compiled end-anchored suffix patterns, built once so
// stripping does not recompile per entry.
type SuffixSet []*regexp.Regexp

// CompileSuffixes anchors and compiles the suffix pattern fragments.
func CompileSuffixes(fragments []string) SuffixSet {
	set := make(SuffixSet, 0, len(fragments))
	for _, f := range fragments {
		set = append(set, regexp.MustCompile(`(?:`+f+`)$`))
	}
	return set
}

// StripIDSuffixes repeatedly strips recognized suffixes (disambiguation
// counters, "Thesis") from the end of an id. Suffixes may chain, so
// stripping runs until no suffix matches.
func StripIDSuffixes(id string, suffixes SuffixSet) string {
	for {
		stripped := id
		for _, p := range suffixes {
			stripped = p.ReplaceAllString(stripped, "")
		}
		if stripped == id {
			return id
		}
		id = stripped
	}
}

// CheckID compares an entry's suffix-stripped id against its derived id,
// case-insensitively. A nil return means the id is plausible or the entry
// lacks the attributes to derive one.
func CheckID(entry *papershelf.Entry, orgs map[string]string, suffixes SuffixSet) *IDFinding {
	derived, ok := DeriveID(entry, orgs)
	if !ok {
		return nil
	}
	current := strings.ToLower(StripIDSuffixes(entry.ID, suffixes))
	derivedLower := strings.ToLower(derived)
	if strings.HasPrefix(derivedLower, current) {
		return nil
	}
	return &IDFinding{Current: current, Derived: derivedLower}
}

// NeedsQuoting reports whether a title contains words with unprotected
// mid-word capitals. Brace-protected spans collapse out first, including
// nested ones; a word still containing a literal brace is skipped; single
// capitals after a hyphen or slash are tolerated. Two or more
// lowercase-to-uppercase shifts in one residual word flag the title.
//
// This is a heuristic with known false positives (a quoted phrase holding an
// internal capitalized conjunction, for one); findings are for manual
// review.
func NeedsQuoting(title string) bool {
	for braceGroupPattern.MatchString(title) {
		title = braceGroupPattern.ReplaceAllString(title, "")
	}
	for _, word := range strings.Fields(title) {
		if strings.Contains(word, "{") {
			continue
		}
		word = hyphenCapPattern.ReplaceAllString(word, "")
		if len(caseShiftPattern.FindAllString(word, -1)) >= 2 {
			return true
		}
	}
	return false
}

// Orphans returns the sorted stems present in the file index but absent from
// the library.
func Orphans(library papershelf.Library, files map[string]string) []string {
	var stems []string
	for stem := range files {
		if _, ok := library[stem]; !ok {
			stems = append(stems, stem)
		}
	}
	sort.Strings(stems)
	return stems
}

// Engine runs every check over a library and prints plain-line diagnostics.
type Engine struct {
	orgs     map[string]string
	suffixes SuffixSet
	out      io.Writer
}

// New creates a lint engine writing diagnostics to out. The suffix pattern
// fragments are compiled once here.
func New(orgs map[string]string, suffixes []string, out io.Writer) *Engine {
	return &Engine{orgs: orgs, suffixes: CompileSuffixes(suffixes), out: out}
}

// Run executes all four passes: name format, id derivation, orphan files,
// and title quoting. files is the stem-to-path index of the local store.
func (e *Engine) Run(library papershelf.Library, files map[string]string) {
	ids := library.IDs()

	for _, id := range ids {
		for _, f := range CheckNames(library[id], e.orgs) {
			fmt.Fprintf(e.out, "non-conforming %ss in %s:\n", f.Attribute, id)
			fmt.Fprintf(e.out, "    current:\n")
			fmt.Fprintf(e.out, "        %s = {%s},\n", f.Attribute, f.Current)
			fmt.Fprintf(e.out, "    suggested:\n")
			fmt.Fprintf(e.out, "        %s = {%s},\n", f.Attribute, f.Suggested)
		}
	}

	for _, id := range ids {
		if f := CheckID(library[id], e.orgs, e.suffixes); f != nil {
			fmt.Fprintf(e.out, "suspicious ID: %s vs %s\n", f.Current, f.Derived)
			fmt.Fprintf(e.out, "    Current: %s\n", f.Current)
			fmt.Fprintf(e.out, "    Computed: %s\n", f.Derived)
		}
	}

	for _, stem := range Orphans(library, files) {
		fmt.Fprintf(e.out, "missing entry for file %s\n", files[stem])
	}

	for _, id := range ids {
		if title, ok := library[id].Attr("title"); ok && NeedsQuoting(title) {
			fmt.Fprintf(e.out, "unquoted title for %s: %s\n", id, title)
		}
	}
}
