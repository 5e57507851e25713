package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestChunk_EmptyInput verifies empty input yields an empty sequence, not an error.
func TestChunk_EmptyInput(t *testing.T) {
	chunker := NewChunker()

	for _, input := range []string{"", "   ", "\n\n\n"} {
		chunks, err := chunker.Chunk(input, Config{PreserveStructure: true})
		if err != nil {
			t.Fatalf("Chunk(%q) failed: %v", input, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Chunk(%q): expected 0 chunks, got %d", input, len(chunks))
		}
	}
}

// TestChunk_HeadingBoundaries verifies splits occur at H1/H2 boundaries.
func TestChunk_HeadingBoundaries(t *testing.T) {
	input := `# Getting Started

Introduction text here.

## Installation

Install steps here.

## Configuration

Config details here.
`

	chunker := NewChunker()
	chunks, err := chunker.Chunk(input, Config{MaxSize: 500, MinSize: 5, PreserveStructure: true})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	if !strings.HasPrefix(chunks[0].Text, "# Getting Started") {
		t.Errorf("Chunk 0 should start at the H1 marker, got %q", chunks[0].Text[:20])
	}
	if !strings.HasPrefix(chunks[1].Text, "## Installation") {
		t.Errorf("Chunk 1 should start at the Installation heading")
	}
	if !strings.Contains(chunks[2].Text, "Config details here") {
		t.Errorf("Chunk 2 missing expected content")
	}
}

// TestChunk_ContiguousIndices verifies indices count up from zero.
func TestChunk_ContiguousIndices(t *testing.T) {
	input := strings.Repeat("# Section\n\nSome section body text with enough length.\n\n", 10)

	chunker := NewChunker()
	chunks, err := chunker.Chunk(input, Config{MaxSize: 200, MinSize: 10, PreserveStructure: true})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("Chunk %d has index %d", i, chunk.Index)
		}
	}
}

// TestChunk_Coverage verifies every source byte is covered by some chunk.
func TestChunk_Coverage(t *testing.T) {
	input := `# One

First section body.

## Two

Second section body with a bit more text in it.

Trailing paragraph outside any real structure.
`

	chunker := NewChunker()
	chunks, err := chunker.Chunk(input, Config{MaxSize: 100, MinSize: 5, OverlapPercent: 10, PreserveStructure: true})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	covered := make([]bool, len(input))
	for _, chunk := range chunks {
		if chunk.Size != len(chunk.Text) {
			t.Errorf("chunk %d: Size %d != len(Text) %d", chunk.Index, chunk.Size, len(chunk.Text))
		}
		if input[chunk.StartOffset:chunk.StartOffset+chunk.Size] != chunk.Text {
			t.Errorf("chunk %d: StartOffset does not locate Text in source", chunk.Index)
		}
		for i := chunk.StartOffset; i < chunk.StartOffset+chunk.Size; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("source byte %d not covered by any chunk", i)
		}
	}
}

// TestChunk_OversizedSectionWindows verifies units above MaxSize fall back to
// overlapping fixed-size windows.
func TestChunk_OversizedSectionWindows(t *testing.T) {
	body := strings.Repeat("abcdefghij", 100) // 1000 bytes, no structure
	input := "# Big\n\n" + body + "\n"

	cfg := Config{MaxSize: 300, MinSize: 30, OverlapPercent: 20, PreserveStructure: true}
	chunker := NewChunker()
	chunks, err := chunker.Chunk(input, cfg)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(chunks) < 3 {
		t.Fatalf("Expected multiple windows, got %d chunks", len(chunks))
	}

	// Consecutive windows share an overlap region.
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.StartOffset >= prev.StartOffset+prev.Size {
			t.Errorf("windows %d and %d do not overlap", i-1, i)
		}
	}
}

// TestChunk_MinSizeMerge verifies undersized chunks merge with a neighbor.
func TestChunk_MinSizeMerge(t *testing.T) {
	input := `# First

A section with a reasonable amount of body text to stay above minimum.

## Tiny

x

## Third

Another section with a reasonable amount of body text as well.
`

	chunker := NewChunker()
	chunks, err := chunker.Chunk(input, Config{MaxSize: 500, MinSize: 40, PreserveStructure: true})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	for _, chunk := range chunks {
		if chunk.Size < 40 {
			t.Errorf("chunk %d below MinSize after merge pass: %d bytes", chunk.Index, chunk.Size)
		}
	}

	// Tiny section content must survive inside a merged chunk.
	var found bool
	for _, chunk := range chunks {
		if strings.Contains(chunk.Text, "## Tiny") {
			found = true
		}
	}
	if !found {
		t.Error("merged output lost the undersized section")
	}
}

// TestChunk_NoStructure verifies paragraph packing for plain text.
func TestChunk_NoStructure(t *testing.T) {
	input := "First paragraph of plain text.\n\nSecond paragraph of plain text.\n\nThird paragraph of plain text.\n"

	chunker := NewChunker()
	chunks, err := chunker.Chunk(input, Config{MaxSize: 1000, MinSize: 5, PreserveStructure: false})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	// All three paragraphs fit one chunk under MaxSize.
	if len(chunks) != 1 {
		t.Errorf("Expected 1 packed chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Third paragraph") {
		t.Error("packed chunk missing paragraph content")
	}
}

// TestChunk_Restartable verifies chunking is deterministic across calls.
func TestChunk_Restartable(t *testing.T) {
	input := strings.Repeat("Some repeating text content. ", 200)
	cfg := Config{MaxSize: 400, MinSize: 40, OverlapPercent: 15}

	chunker := NewChunker()
	first, err := chunker.Chunk(input, cfg)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	second, err := chunker.Chunk(input, cfg)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

// TestChunk_MultiByteSafety verifies windows never split a UTF-8 rune.
func TestChunk_MultiByteSafety(t *testing.T) {
	input := strings.Repeat("знание это сила ", 200)

	chunker := NewChunker()
	chunks, err := chunker.Chunk(input, Config{MaxSize: 333, MinSize: 10, OverlapPercent: 10})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	for _, chunk := range chunks {
		if !utf8.ValidString(chunk.Text) {
			t.Errorf("chunk %d contains a broken rune", chunk.Index)
		}
	}
}
