// Package pagerange parses human page-range expressions such as "1-3,5".
package pagerange

import (
	"sort"
	"strconv"
	"strings"
)

// MaxPage is the highest page number Parse expands.
// Range ends beyond it are clamped; single pages beyond it are dropped.
const MaxPage = 100000

// PageSpec is an ascending, de-duplicated set of zero-based page indices.
type PageSpec struct {
	indices []int
}

// Parse reads a comma-separated list of 1-based pages ("4") and inclusive
// ranges ("2-6"). Malformed tokens, reversed ranges and tokens that would
// yield negative indices are skipped. An empty or all-invalid spec gives an
// empty PageSpec; Parse never fails.
func Parse(spec string) PageSpec {
	set := make(map[int]struct{})
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		lo, hi, ok := parseToken(tok)
		if !ok {
			continue
		}
		for p := lo; p <= hi; p++ {
			set[p-1] = struct{}{}
		}
	}

	indices := make([]int, 0, len(set))
	for i := range set {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return PageSpec{indices: indices}
}

// parseToken returns the 1-based inclusive bounds of tok.
func parseToken(tok string) (lo, hi int, ok bool) {
	// A leading '-' is a negative number, not a range separator.
	if i := strings.Index(tok[1:], "-"); i >= 0 {
		a, errA := strconv.Atoi(strings.TrimSpace(tok[:i+1]))
		b, errB := strconv.Atoi(strings.TrimSpace(tok[i+2:]))
		if errA != nil || errB != nil || a < 1 || a > b {
			return 0, 0, false
		}
		return a, min(b, MaxPage), a <= MaxPage
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 1 || n > MaxPage {
		return 0, 0, false
	}
	return n, n, true
}

// FromIndices builds a PageSpec from zero-based indices. Negative values are dropped.
func FromIndices(indices []int) PageSpec {
	var b strings.Builder
	for _, i := range indices {
		if i < 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(i + 1))
	}
	return Parse(b.String())
}

// Indices returns a copy of the zero-based indices in ascending order.
func (p PageSpec) Indices() []int {
	out := make([]int, len(p.indices))
	copy(out, p.indices)
	return out
}

// Len reports the number of selected pages.
func (p PageSpec) Len() int { return len(p.indices) }

// Empty reports whether no page is selected.
func (p PageSpec) Empty() bool { return len(p.indices) == 0 }

// Contains reports whether the zero-based index i is selected.
func (p PageSpec) Contains(i int) bool {
	j := sort.SearchInts(p.indices, i)
	return j < len(p.indices) && p.indices[j] == i
}

// Within drops indices at or beyond pageCount.
func (p PageSpec) Within(pageCount int) PageSpec {
	n := sort.SearchInts(p.indices, pageCount)
	out := make([]int, n)
	copy(out, p.indices[:n])
	return PageSpec{indices: out}
}

// String renders the set in 1-based form with consecutive runs collapsed,
// e.g. "1-3,5,8-10". Parse(p.String()) yields p.
func (p PageSpec) String() string {
	var parts []string
	for i := 0; i < len(p.indices); {
		j := i
		for j+1 < len(p.indices) && p.indices[j+1] == p.indices[j]+1 {
			j++
		}
		if j == i {
			parts = append(parts, strconv.Itoa(p.indices[i]+1))
		} else {
			parts = append(parts, strconv.Itoa(p.indices[i]+1)+"-"+strconv.Itoa(p.indices[j]+1))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

// Selectors returns the page selection as 1-based selector strings, one per
// run, in the form PDF engines accept ("1-3", "5").
func (p PageSpec) Selectors() []string {
	s := p.String()
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
