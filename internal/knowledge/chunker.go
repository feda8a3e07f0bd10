// Package knowledge splits documents into overlapping chunks and ranks the
// chunks against a question by plain keyword counting.
package knowledge

import (
	"errors"
	"strings"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var ErrInvalidWindow = errors.New("chunk overlap must be smaller than chunk size")

// NormalizeText collapses every whitespace run into a single space and trims the ends
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split slides a window of size runes over the normalized text. Each window
// starts overlap runes before the previous one ended; the last one ends at
// the end of the text. Joining chunk 0 with chunk[i][overlap:] for every
// following chunk gives back NormalizeText(text).
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidWindow
	}

	runes := []rune(NormalizeText(text))
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	var chunks []string
	for start := 0; ; start = start + size - overlap {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return chunks, nil
}
