package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

const paragraphSep = "\n\n"

// Split cuts doc into chunks of at most size runes. Paragraphs are kept
// whole when they fit; each new chunk repeats the last overlap runes of
// the previous one. Chunk ids are stable across re-ingests.
func Split(doc Document, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap = min(max(overlap, 0), size/2)

	text := strings.TrimSpace(strings.ReplaceAll(doc.Content, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	var (
		pieces []string
		cur    []rune
		fresh  bool
	)
	sep := []rune(paragraphSep)

	emit := func() {
		if !fresh {
			return
		}
		if s := strings.TrimSpace(string(cur)); s != "" {
			pieces = append(pieces, s)
		}
		cur = slices.Clone(cur[max(len(cur)-overlap, 0):])
		fresh = false
	}

	for _, para := range strings.Split(text, paragraphSep) {
		p := []rune(strings.TrimSpace(para))
		if len(p) == 0 {
			continue
		}
		if fresh && len(cur)+len(sep)+len(p) > size {
			emit()
		}
		if len(cur) > 0 {
			if size-len(cur)-len(sep) <= 0 {
				cur = cur[:0]
			} else {
				cur = append(cur, sep...)
			}
		}
		for len(p) > 0 {
			take := min(size-len(cur), len(p))
			cur = append(cur, p[:take]...)
			fresh = true
			p = p[take:]
			if len(p) > 0 {
				emit()
			}
		}
	}
	emit()

	chunks := make([]Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = Chunk{
			ID:       ChunkID(doc.Name, i, content),
			Document: doc.Name,
			Index:    i,
			Content:  content,
			Metadata: doc.Metadata,
		}
	}
	return chunks
}

// ChunkID derives the content-addressed id of a chunk.
func ChunkID(document string, index int, content string) string {
	h := sha256.New()
	h.Write([]byte(document))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
