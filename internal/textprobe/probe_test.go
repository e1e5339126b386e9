package textprobe

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDoc struct {
	pages []string
	bad   map[int]bool
	seen  []int
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }

func (d *fakeDoc) Text(i int) (string, error) {
	d.seen = append(d.seen, i)
	if d.bad[i] {
		return "", errors.New("broken page")
	}
	return d.pages[i], nil
}

func TestProbeFindsText(t *testing.T) {
	d := &fakeDoc{pages: []string{strings.Repeat("word ", 10), strings.Repeat("more ", 10)}}

	diag := Probe(d, 60)

	assert.True(t, diag.HasExtractableText)
	assert.Equal(t, 80, diag.TotalCharsInSample)
	assert.Equal(t, []int{0, 1}, d.seen)
}

func TestProbeStopsEarly(t *testing.T) {
	d := &fakeDoc{pages: []string{strings.Repeat("x", 200), "a", "b"}}

	diag := Probe(d, 100)

	assert.True(t, diag.HasExtractableText)
	assert.Equal(t, []int{0}, d.seen)
}

func TestProbeScannedDocument(t *testing.T) {
	d := &fakeDoc{pages: []string{" \n ", "", "\t"}, bad: map[int]bool{1: true}}

	diag := Probe(d, 0)

	assert.False(t, diag.HasExtractableText)
	assert.Equal(t, DefaultThreshold, diag.Threshold)
	assert.Equal(t, "broken page", diag.Probes[1].Err)
}

func TestSampleIndices(t *testing.T) {
	assert.Equal(t, []int{}, sampleIndices(0, nil))
	assert.Equal(t, []int{0, 1, 2}, sampleIndices(3, nil))

	seq := []int{4, 4, 7}
	next := func(int) int { v := seq[0]; seq = seq[1:]; return v }
	assert.Equal(t, []int{0, 4, 7, 10, 19}, sampleIndices(20, next))
}
