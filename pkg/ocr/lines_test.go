package ocr

import (
	"reflect"
	"testing"
)

func tok(text string, left, top, conf int) Token {
	return Token{Text: text, BBox: BBox{Left: left, Top: top, Width: 20, Height: 12}, Confidence: conf}
}

func TestFilter(t *testing.T) {
	in := []Token{
		tok("b", 50, 10, 90),
		tok("low", 0, 0, 30),
		tok("  ", 0, 0, 99),
		tok("a", 10, 10, 31),
		tok("top", 80, 2, 100),
	}
	got := Filter(in, DefaultMinConfidence)
	want := []string{"top", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("Filter() kept %d tokens, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Fatalf("token %d = %q, want %q", i, got[i].Text, w)
		}
		if got[i].Confidence <= 30 || got[i].Confidence > 100 {
			t.Fatalf("token %q confidence %d outside (30,100]", got[i].Text, got[i].Confidence)
		}
	}
}

func TestTokensToLines(t *testing.T) {
	tokens := Filter([]Token{
		tok("Name:", 10, 100, 90),
		tok("Smith", 140, 104, 90),
		tok("Jane", 80, 98, 90),
		tok("Age:", 10, 130, 90),
		tok("45", 80, 131, 90),
	}, DefaultMinConfidence)

	lines := TokensToLines(tokens, DefaultLineThreshold)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if got := LineText(lines[0]); got != "Name: Jane Smith" {
		t.Fatalf("first line = %q, want tokens ordered by left edge", got)
	}
	if got := Text(lines); got != "Name: Jane Smith\nAge: 45\n" {
		t.Fatalf("Text() = %q", got)
	}
	if TokenCount(lines) != 5 {
		t.Fatalf("TokenCount() = %d, want 5", TokenCount(lines))
	}
}

func TestTokensToLinesAnchorsOnFirstToken(t *testing.T) {
	// The band is measured from the first token of the line, not the last one,
	// so a slow downward drift eventually starts a new line.
	tokens := []Token{
		tok("a", 0, 0, 90),
		tok("b", 30, 8, 90),
		tok("c", 60, 16, 90),
	}
	lines := TokensToLines(tokens, 10)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if LineText(lines[0]) != "a b" || LineText(lines[1]) != "c" {
		t.Fatalf("unexpected lines %q / %q", LineText(lines[0]), LineText(lines[1]))
	}
}

func TestTokensToLinesEmpty(t *testing.T) {
	if lines := TokensToLines(nil, DefaultLineThreshold); len(lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(lines))
	}
	if Text(nil) != "" {
		t.Fatalf("expected empty text")
	}
}

func TestTokensToLinesIdempotent(t *testing.T) {
	tokens := Filter([]Token{
		tok("Hemoglobin", 10, 200, 88),
		tok("13.5", 200, 203, 91),
		tok("g/dL", 260, 199, 77),
		tok("WBC", 10, 240, 95),
		tok("7000", 200, 238, 95),
	}, DefaultMinConfidence)

	first := TokensToLines(tokens, DefaultLineThreshold)

	var flattened []Token
	for _, l := range first {
		flattened = append(flattened, l...)
	}
	SortTokens(flattened)
	second := TokensToLines(flattened, DefaultLineThreshold)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reconstruction is not idempotent:\n%v\n%v", first, second)
	}
}

func TestBBoxEdges(t *testing.T) {
	b := BBox{Left: 5, Top: 7, Width: 10, Height: 3}
	if b.Right() != 15 || b.Bottom() != 10 {
		t.Fatalf("Right/Bottom = %d/%d", b.Right(), b.Bottom())
	}
}
