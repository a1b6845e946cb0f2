package ocr

import (
	"sort"
	"strings"
)

// Filter keeps tokens with non-empty text and confidence strictly above
// minConf, and returns them sorted by (top, left). The input is not modified.
func Filter(tokens []Token, minConf int) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" || t.Confidence <= minConf {
			continue
		}
		out = append(out, t)
	}
	SortTokens(out)
	return out
}

// SortTokens sorts tokens in place by top, then left. The sort is stable so
// tokens with identical positions keep their recognition order.
func SortTokens(tokens []Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].BBox.Top != tokens[j].BBox.Top {
			return tokens[i].BBox.Top < tokens[j].BBox.Top
		}
		return tokens[i].BBox.Left < tokens[j].BBox.Left
	})
}

// TokensToLines clusters tokens into lines. Tokens must already be sorted
// by (top, left), as returned by Filter.
//
// A line is anchored at the top of its first token; every following token
// whose top lies within threshold pixels of the anchor joins the line.
// The first token outside the band closes the line and anchors the next one.
// Each closed line is sorted by left edge.
func TokensToLines(tokens []Token, threshold int) []Line {
	if len(tokens) == 0 {
		return nil
	}

	var lines []Line
	current := Line{tokens[0]}
	anchor := tokens[0].BBox.Top

	for _, t := range tokens[1:] {
		if abs(t.BBox.Top-anchor) <= threshold {
			current = append(current, t)
			continue
		}
		lines = append(lines, closeLine(current))
		current = Line{t}
		anchor = t.BBox.Top
	}
	return append(lines, closeLine(current))
}

func closeLine(l Line) Line {
	sort.SliceStable(l, func(i, j int) bool {
		return l[i].BBox.Left < l[j].BBox.Left
	})
	return l
}

// LineText joins the token texts of a line with single spaces.
func LineText(l Line) string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Text renders lines as newline-terminated text, one line per row.
func Text(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(LineText(l))
		b.WriteString("\n")
	}
	return b.String()
}

// TokenCount returns the number of tokens across all lines.
func TokenCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
