// Package parser turns source files into plain text. Dispatch is by file
// extension with an optional named strategy override (used by robustness
// tests to simulate degraded digitization).
package parser

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoExtractableText signals a file the right parser could open but could
// not pull any text from.
var ErrNoExtractableText = errors.New("no extractable text")

// AllowedExtensions is the supported source extension set.
var AllowedExtensions = map[string]bool{
	".txt": true, ".md": true, ".html": true, ".epub": true,
	".gz": true, ".pdf": true, ".docx": true, ".rtf": true,
}

// Result carries the extracted text plus parser provenance for the job row.
type Result struct {
	Text       string
	ParserName string
	Strategy   string
}

// Parser dispatches files to the extension-appropriate extractor.
type Parser struct {
	pdfToTextPath string
}

// New returns a Parser. pdfToTextPath defaults to "pdftotext" when empty.
func New(pdfToTextPath string) *Parser {
	if pdfToTextPath == "" {
		pdfToTextPath = "pdftotext"
	}
	return &Parser{pdfToTextPath: pdfToTextPath}
}

// Parse extracts text from path. strategy may be empty (normal parsing) or
// "garble" (deterministic corruption of the parsed text, used to exercise
// the quality gates).
func (p *Parser) Parse(ctx context.Context, path, strategy string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !AllowedExtensions[ext] {
		return Result{}, eris.Errorf("parser: unsupported extension %s", ext)
	}

	var text string
	var err error
	name := strings.TrimPrefix(ext, ".")
	switch ext {
	case ".txt", ".md":
		text, err = parseText(path)
	case ".html":
		text, err = parseHTML(path)
	case ".epub":
		text, err = parseEPUB(path)
	case ".gz":
		text, err = parseGzip(path)
	case ".pdf":
		text, err = parsePDF(ctx, p.pdfToTextPath, path)
	case ".docx":
		text, err = parseDocx(path)
	case ".rtf":
		text, err = parseRTF(path)
	}
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, eris.Wrapf(ErrNoExtractableText, "parser: %s", path)
	}

	if strategy == "garble" {
		text = garble(text)
	}
	return Result{Text: text, ParserName: name, Strategy: strategy}, nil
}

// garble deterministically replaces a slice of characters with replacement
// runes so downstream scoring sees realistic digitization damage.
func garble(text string) string {
	rng := rand.New(rand.NewSource(int64(len(text))))
	runes := []rune(text)
	for i := range runes {
		if runes[i] != ' ' && runes[i] != '\n' && rng.Float64() < 0.18 {
			runes[i] = '�'
		}
	}
	return string(runes)
}
