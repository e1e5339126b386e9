// Package textprobe decides whether a PDF carries a usable text layer by
// sampling a few pages.
package textprobe

import (
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode"
)

// PageProbe captures the result of probing a single PDF page.
type PageProbe struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Diagnostics describes one probe run.
type Diagnostics struct {
	TotalPages         int           `json:"total_pages"`
	SampledPages       []int         `json:"sampled_pages"`
	TotalCharsInSample int           `json:"total_chars_in_sample"`
	Threshold          int           `json:"threshold"`
	Probes             []PageProbe   `json:"probes"`
	HasExtractableText bool          `json:"has_extractable_text"`
	Duration           time.Duration `json:"-"`
}

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 100

// Doc is implemented by *mupdf.Document.
type Doc interface {
	NumPage() int
	Text(page int) (string, error)
}

// Probe samples pages of d and reports whether at least threshold
// non-whitespace characters were found. Pages that fail to extract count as
// empty.
func Probe(d Doc, threshold int) Diagnostics {
	return probe(d, threshold, sampleIndices(d.NumPage(), rand.Intn))
}

func probe(d Doc, threshold int, sample []int) Diagnostics {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	start := time.Now()
	diag := Diagnostics{
		TotalPages:   d.NumPage(),
		SampledPages: sample,
		Threshold:    threshold,
		Probes:       make([]PageProbe, 0, len(sample)),
	}

	for _, idx := range sample {
		p := PageProbe{PageIndex: idx}
		text, err := d.Text(idx)
		if err != nil {
			p.Err = err.Error()
			diag.Probes = append(diag.Probes, p)
			continue
		}
		p.CharCount = countVisible(text)
		diag.TotalCharsInSample += p.CharCount
		diag.Probes = append(diag.Probes, p)
		if diag.TotalCharsInSample >= threshold {
			break
		}
	}

	diag.HasExtractableText = diag.TotalCharsInSample >= threshold
	diag.Duration = time.Since(start)
	return diag
}

func countVisible(s string) int {
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// sampleIndices picks every page of short documents, otherwise the first,
// middle and last pages plus two random ones.
func sampleIndices(total int, intn func(int) int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 5 {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	picked := map[int]struct{}{0: {}, total / 2: {}, total - 1: {}}
	for len(picked) < 5 {
		picked[intn(total)] = struct{}{}
	}
	out := make([]int, 0, len(picked))
	for i := range picked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
