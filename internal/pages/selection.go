// Package pages parses page-range expressions and filters ordered page collections.
package pages

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/local/scanlike/internal/scanerr"
)

// MaxUnboundedSpan caps how many pages one range token may name when Parse has
// no page count to clip against.
const MaxUnboundedSpan = 100000

var (
	errReversedRange = errors.New("range start exceeds range end")
	errSpanTooWide   = fmt.Errorf("range names more than %d pages", MaxUnboundedSpan)
)

// Selection is a validated set of 1-based page indices.
type Selection struct {
	// Indices are unique and ascending.
	Indices []int
	// Requested counts the distinct indices named by the expression before bounds filtering.
	Requested int
	// Dropped counts requested indices that fell outside [1, max].
	Dropped int
}

type span struct{ lo, hi int }

// Parse turns an expression like "1,3,5-7" into a Selection.
// Empty input yields an empty selection. When max > 0 indices outside [1, max]
// are dropped silently and counted in Dropped; index 0 and below are always dropped.
// Without a max, a range wider than MaxUnboundedSpan is a MalformedTokenError.
func Parse(expr string, max int) (Selection, error) {
	if strings.TrimSpace(expr) == "" {
		return Selection{}, nil
	}

	var spans []span
	for _, part := range strings.Split(expr, ",") {
		tok := strings.TrimSpace(part)
		if tok == "" {
			continue
		}
		sp, err := parseToken(tok)
		if err != nil {
			return Selection{}, err
		}
		if max <= 0 && sp.size() > MaxUnboundedSpan {
			return Selection{}, &scanerr.MalformedTokenError{Token: tok, Err: errSpanTooWide}
		}
		spans = append(spans, sp)
	}

	spans = merge(spans)

	sel := Selection{}
	for _, sp := range spans {
		sel.Requested = addSat(sel.Requested, sp.size())

		lo, hi := sp.lo, sp.hi
		if lo < 1 {
			lo = 1
		}
		if max > 0 && hi > max {
			hi = max
		}
		for i := lo; i <= hi; i++ {
			sel.Indices = append(sel.Indices, i)
		}
	}
	sel.Dropped = sel.Requested - len(sel.Indices)
	return sel, nil
}

func parseToken(tok string) (span, error) {
	if a, b, ok := strings.Cut(tok, "-"); ok {
		lo, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return span{}, &scanerr.MalformedTokenError{Token: tok, Err: err}
		}
		hi, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return span{}, &scanerr.MalformedTokenError{Token: tok, Err: err}
		}
		if lo > hi {
			return span{}, &scanerr.MalformedTokenError{Token: tok, Err: errReversedRange}
		}
		return span{lo, hi}, nil
	}

	n, err := strconv.Atoi(tok)
	if err != nil {
		return span{}, &scanerr.MalformedTokenError{Token: tok, Err: err}
	}
	return span{n, n}, nil
}

// size is the number of indices in sp, saturating at math.MaxInt.
func (sp span) size() int {
	d := sp.hi - sp.lo
	if d < 0 || d == math.MaxInt {
		return math.MaxInt
	}
	return d + 1
}

func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// merge sorts spans and collapses overlapping or adjacent ones.
func merge(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.lo <= last.hi || sp.lo-last.hi == 1 {
			if sp.hi > last.hi {
				last.hi = sp.hi
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Len returns the number of selected pages.
func (s Selection) Len() int { return len(s.Indices) }

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return len(s.Indices) == 0 }

// Contains reports whether the 1-based index i is selected.
func (s Selection) Contains(i int) bool {
	n := sort.SearchInts(s.Indices, i)
	return n < len(s.Indices) && s.Indices[n] == i
}

// String renders the selection in compact range form, e.g. "1,3,5-7".
func (s Selection) String() string {
	var b strings.Builder
	for i := 0; i < len(s.Indices); {
		j := i
		for j+1 < len(s.Indices) && s.Indices[j+1] == s.Indices[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(s.Indices[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(s.Indices[j]))
		}
		i = j + 1
	}
	return b.String()
}
