package parser

import (
	"fmt"
	"strings"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	SplitterFixed     = "fixed"
	SplitterRecursive = "recursive"
)

// Splitter turns extracted text into ordered chunks.
type Splitter interface {
	Split(text string) ([]models.Chunk, error)
}

// NewSplitter builds the splitter named in cfg. Sizes are in characters (runes).
func NewSplitter(cfg config.RAGConfig) (Splitter, error) {
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 || overlap < 0 || overlap >= size {
		size, overlap = config.DefaultChunkSize, config.DefaultChunkOverlap
	}

	switch cfg.Splitter {
	case "", SplitterFixed:
		return FixedSplitter{ChunkSize: size, ChunkOverlap: overlap}, nil
	case SplitterRecursive:
		return recursiveSplitter{
			splitter: textsplitter.NewRecursiveCharacter(
				textsplitter.WithChunkSize(size),
				textsplitter.WithChunkOverlap(overlap),
			),
		}, nil
	default:
		return nil, fmt.Errorf("unknown splitter %q", cfg.Splitter)
	}
}

// FixedSplitter cuts windows of at most ChunkSize characters, each starting
// ChunkSize-ChunkOverlap characters after the previous one. A window end is
// pulled back to a space, newline or period found in its last 10%, so the
// overlap with the next chunk is up to ChunkOverlap characters, not exactly.
type FixedSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func (s FixedSplitter) Split(text string) ([]models.Chunk, error) {
	parts := chunkContent(text, s.ChunkSize, s.ChunkOverlap)
	return toChunks(parts), nil
}

type recursiveSplitter struct {
	splitter textsplitter.RecursiveCharacter
}

func (s recursiveSplitter) Split(text string) ([]models.Chunk, error) {
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return toChunks(kept), nil
}

func toChunks(parts []string) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, models.Chunk{Ordinal: i, Content: p})
	}
	return chunks
}

// chunk content into chunks with maxChars and overlapChars
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{string(runes)}
	}

	var chunks []string
	step := maxChars - overlapChars
	for start := 0; start < contentLen; start += step {
		end := min(start+maxChars, contentLen)

		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if start+maxChars >= contentLen {
			break
		}
	}
	return chunks
}
