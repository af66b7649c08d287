package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/spf13/afero"
)

// FitzExtractor extracts text locally with MuPDF, one page at a time.
type FitzExtractor struct {
	fs afero.Fs
}

// NewFitzExtractor creates a local extractor reading source files from fs.
func NewFitzExtractor(fs afero.Fs) *FitzExtractor {
	return &FitzExtractor{fs: fs}
}

// Extract returns the text of every page joined with newlines.
func (e *FitzExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		pages = append(pages, strings.TrimRight(text, "\n"))
	}
	return strings.Join(pages, "\n"), nil
}
