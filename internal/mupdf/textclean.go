package mupdf

import (
	"strconv"
	"strings"
	"unicode"
)

// cleanText drops page-number, header/footer and noise lines from raw page
// text. Unless keepLayout is set, lines broken mid-sentence are re-joined.
func cleanText(text string, pageNum int, keepLayout bool) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case isPageNumber(trimmed, pageNum):
		case isHeaderFooter(trimmed):
		case isNoise(trimmed):
		default:
			kept = append(kept, strings.TrimRightFunc(line, unicode.IsSpace))
		}
	}
	out := strings.Join(kept, "\n")
	if !keepLayout {
		out = fixBrokenLines(out)
	}
	return strings.TrimSpace(out)
}

// Paragraphs splits cleaned page text into paragraphs on blank lines, or on
// every line break when the text has none.
func Paragraphs(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	if strings.Contains(text, "\n\n") {
		for _, blk := range strings.Split(text, "\n\n") {
			if blk = strings.TrimSpace(blk); blk != "" {
				out = append(out, blk)
			}
		}
		return out
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func isPageNumber(line string, pageNum int) bool {
	n := strconv.Itoa(pageNum)
	if line == n {
		return true
	}
	for _, pattern := range []string{"Page " + n, "- " + n + " -", "[" + n + "]", n + "."} {
		if strings.EqualFold(line, pattern) {
			return true
		}
	}
	return false
}

func isHeaderFooter(line string) bool {
	if len([]rune(line)) < 3 {
		return true
	}
	if len(line) < 50 && strings.ToUpper(line) == line && hasLatinLetter(line) {
		if len(strings.Fields(line)) <= 2 {
			return true
		}
	}
	upper := strings.ToUpper(line)
	for _, pattern := range []string{"CONFIDENTIAL", "COPYRIGHT", "ALL RIGHTS RESERVED", "PROPRIETARY"} {
		if strings.Contains(upper, pattern) && len(line) < 100 {
			return true
		}
	}
	return false
}

// isNoise reports lines made only of digits or of symbols.
func isNoise(line string) bool {
	if _, err := strconv.Atoi(line); err == nil {
		return true
	}
	for _, r := range line {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func hasLatinLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func fixBrokenLines(text string) string {
	lines := strings.Split(text, "\n")
	fixed := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		for i < len(lines)-1 {
			cur := strings.TrimSpace(line)
			next := strings.TrimSpace(lines[i+1])
			if cur == "" || next == "" || endsSentence(cur) || strings.HasSuffix(cur, "-") {
				break
			}
			if c := next[0]; c < 'a' || c > 'z' {
				break
			}
			line = cur + " " + next
			i++
		}
		fixed = append(fixed, line)
	}
	return strings.Join(fixed, "\n")
}

func endsSentence(s string) bool {
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return strings.HasSuffix(s, "。") || strings.HasSuffix(s, "！") || strings.HasSuffix(s, "？")
}
