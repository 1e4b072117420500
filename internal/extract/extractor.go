// Package extract turns raw documents into plain text.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"docchat/internal/contextutil"
	"docchat/internal/rag"
)

var supportedExtensions = []string{".pdf", ".md", ".markdown", ".txt"}

// SupportedExtensions returns the file extensions the Extractor understands.
func SupportedExtensions() []string {
	return slices.Clone(supportedExtensions)
}

// Supported reports whether name has an extension the Extractor understands.
func Supported(name string) bool {
	return slices.Contains(supportedExtensions, strings.ToLower(filepath.Ext(name)))
}

// Extractor implements rag.TextExtractor for PDF, Markdown and plain text files.
type Extractor struct {
	markdown *markdownExtractor
}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{markdown: newMarkdownExtractor()}
}

// ExtractText returns the text of doc. The format is chosen by the extension of
// doc.Name. A document without text yields an empty string and no error.
func (e *Extractor) ExtractText(ctx context.Context, doc rag.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(doc.Name))

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(doc.Data)
	case ".md", ".markdown":
		text = e.markdown.extract(doc.Data)
	case ".txt", "":
		text = extractPlain(doc.Data)
	default:
		return "", &rag.ValidationError{
			Field:   "files",
			Message: fmt.Sprintf("unsupported file type %q for %s", ext, doc.Name),
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", rag.ErrInput, doc.Name, err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "text extracted",
		"document", doc.Name,
		"bytes", len(doc.Data),
		"characters", len([]rune(text)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
