package text

import (
	"strings"
)

// Chunk is one bounded span of extracted text, the unit of embedding.
// Index is the position of the chunk within its document and must be
// reproducible: splitting the same input twice yields the same chunks in
// the same order, which keeps citation indices stable across re-runs.
type Chunk struct {
	Content string
	Index   int
	Page    int
}

// PageText is the text of a single extracted PDF page.
type PageText struct {
	Page int
	Text string
}

// separators, tried in order, from the strongest structural boundary to
// the weakest. Mirrors how prose actually breaks: paragraphs, lines,
// sentence ends, clause ends, then single spaces as a last resort.
var separators = []string{
	"\n\n",
	"\n",
	". ",
	"! ",
	"? ",
	"; ",
	": ",
	" ",
}

// Split cuts text into chunks of at most chunkSize characters, with roughly
// overlap characters of each chunk repeated at the start of the next one.
// Boundaries are chosen greedily at the strongest separator that fits, so
// the output is deterministic for a given input.
func Split(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize/2 {
		overlap = 0
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	// Pack below chunkSize minus the overlap so that prefixing the
	// carry-over never pushes a chunk past chunkSize.
	target := chunkSize - overlap - 1
	if target < 1 {
		target = chunkSize
	}

	pieces := splitBySeparators(text, target, 0)
	base := packPieces(pieces, target)
	return applyOverlap(base, overlap)
}

// SplitPages splits per-page extracted text while remembering which page
// each chunk came from. Chunk indices are assigned across the whole
// document in page order.
func SplitPages(pages []PageText, chunkSize, overlap int) []Chunk {
	var chunks []Chunk
	idx := 0
	for _, p := range pages {
		for _, content := range Split(p.Text, chunkSize, overlap) {
			chunks = append(chunks, Chunk{
				Content: content,
				Index:   idx,
				Page:    p.Page,
			})
			idx++
		}
	}
	return chunks
}

// splitBySeparators breaks text into pieces no larger than limit by trying
// each separator in turn. A piece that still exceeds limit after the last
// separator is hard-cut.
func splitBySeparators(text string, limit, sepIdx int) []string {
	if len(text) <= limit {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	if sepIdx >= len(separators) {
		var out []string
		for len(text) > limit {
			out = append(out, text[:limit])
			text = text[limit:]
		}
		if len(text) > 0 {
			out = append(out, text)
		}
		return out
	}

	sep := separators[sepIdx]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return splitBySeparators(text, limit, sepIdx+1)
	}

	var out []string
	for i, part := range parts {
		// Keep sentence-ending punctuation attached to its sentence so
		// chunk text reads naturally.
		if i < len(parts)-1 && sep != "\n\n" && sep != "\n" && sep != " " {
			part += strings.TrimRight(sep, " ")
		}
		out = append(out, splitBySeparators(part, limit, sepIdx+1)...)
	}
	return out
}

// packPieces greedily packs pieces into chunks of at most limit characters.
func packPieces(pieces []string, limit int) []string {
	var chunks []string
	var current strings.Builder

	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(piece)+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(piece)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// applyOverlap prefixes every chunk after the first with the tail of its
// predecessor, cut at a word boundary.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap == 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1]
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
			if j := strings.IndexByte(tail, ' '); j >= 0 && j+1 < len(tail) {
				tail = tail[j+1:]
			}
		}
		if tail == "" {
			out[i] = chunks[i]
			continue
		}
		out[i] = tail + " " + chunks[i]
	}
	return out
}
