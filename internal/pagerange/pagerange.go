// Package pagerange turns a page selector such as "1-3,5,7-9" into a
// half-open page interval over a document of known length.
//
// Pages are 1-based in selectors and 0-based everywhere else.
package pagerange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Interval is the contiguous span [Start, End) that covers every selected
// page. Pages lists the selected 0-based pages in ascending order.
type Interval struct {
	Start int
	End   int
	Pages []int
}

// Len returns the number of pages covered by the span.
func (iv Interval) Len() int { return iv.End - iv.Start }

// IsFull reports whether the interval spans a whole document of total pages.
func (iv Interval) IsFull(total int) bool { return iv.Start == 0 && iv.End == total }

// Label renders the span the way it is echoed back to clients: "3-7" or "all".
func (iv Interval) Label(total int) string {
	if iv.IsFull(total) {
		return "all"
	}
	return fmt.Sprintf("%d-%d", iv.Start+1, iv.End)
}

// SelectorError reports a token that is not a number or a number range.
type SelectorError struct {
	Selector string
	Token    string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid page selector %q: bad token %q: %v", e.Selector, e.Token, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }

// Full returns the interval spanning every page.
func Full(total int) Interval {
	if total < 0 {
		total = 0
	}
	pages := make([]int, total)
	for i := range pages {
		pages[i] = i
	}
	return Interval{Start: 0, End: total, Pages: pages}
}

// Resolve parses selector against a document with total pages.
//
// An empty selector or "all" selects the full document. Ranges are clamped to
// the document; single pages outside it are dropped. A selection left empty
// after clamping also yields the full document.
func Resolve(total int, selector string) (Interval, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || strings.EqualFold(selector, "all") {
		return Full(total), nil
	}

	seen := make(map[int]struct{})
	for _, raw := range strings.Split(selector, ",") {
		tok := strings.TrimSpace(raw)
		if lo, hi, ok := strings.Cut(tok, "-"); ok {
			a, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return Interval{}, &SelectorError{Selector: selector, Token: tok, Err: err}
			}
			b, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return Interval{}, &SelectorError{Selector: selector, Token: tok, Err: err}
			}
			for p := max(0, a-1); p < min(total, b); p++ {
				seen[p] = struct{}{}
			}
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return Interval{}, &SelectorError{Selector: selector, Token: tok, Err: err}
		}
		if p := n - 1; p >= 0 && p < total {
			seen[p] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return Full(total), nil
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return Interval{Start: pages[0], End: pages[len(pages)-1] + 1, Pages: pages}, nil
}

// ResolveLenient is Resolve with malformed selectors downgraded to the full
// document. The parse error, if any, is returned alongside for logging.
func ResolveLenient(total int, selector string) (Interval, error) {
	iv, err := Resolve(total, selector)
	if err != nil {
		return Full(total), err
	}
	return iv, nil
}
