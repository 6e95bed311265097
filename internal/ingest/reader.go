package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ReadDocument extracts plain text from a document file. Supported formats
// are .txt, .md, and .pdf. The returned title is the base name without
// extension unless the caller overrides it.
func ReadDocument(path string) (title, text string, err error) {
	base := filepath.Base(path)
	title = strings.TrimSuffix(base, filepath.Ext(base))

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", path, err)
		}
		return title, string(data), nil

	case ".pdf":
		text, err := readPDF(path)
		if err != nil {
			return "", "", err
		}
		return title, text, nil

	default:
		return "", "", fmt.Errorf("unsupported document format %q", ext)
	}
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return buf.String(), nil
}
