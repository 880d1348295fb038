package index

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is the extracted text of one source file.
type Document struct {
	Source string // base file name, carried through to chunk metadata
	Text   string
}

// LoadDocuments reads every supported file in dir and returns extracted
// documents in lexical file order. Files that fail to parse are skipped
// with a log line; a build should survive one corrupt upload. Returns
// an empty slice when dir does not exist.
func LoadDocuments(dir string) []Document {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read document directory %s: %v", dir, err)
		}
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var docs []Document
	for _, name := range names {
		path := filepath.Join(dir, name)
		text, err := extractText(path)
		if err != nil {
			log.Printf("Skipping document %s: %v", path, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			log.Printf("Skipping document %s: no extractable text", path)
			continue
		}
		docs = append(docs, Document{Source: name, Text: text})
	}
	return docs
}

// extractText dispatches on file extension. Unsupported extensions are
// an error so the caller logs and skips them.
func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// extractPDF pulls the plain text out of a PDF file.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return sb.String(), nil
}
