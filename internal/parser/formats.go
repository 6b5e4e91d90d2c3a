package parser

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
)

func parseText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "parser: read %s", path)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	// Latin-1 fallback for legacy scans.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

var htmlTagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

func parseHTML(path string) (string, error) {
	raw, err := parseText(path)
	if err != nil {
		return "", err
	}
	pageURL := &url.URL{Scheme: "file", Path: path}
	article, err := readability.FromReader(strings.NewReader(raw), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		// Readability rejects fragments and bare markup; fall back to a
		// tag strip so short witness pages still parse.
		return htmlTagPattern.ReplaceAllString(raw, "\n"), nil
	}
	return article.TextContent, nil
}

func parseGzip(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "parser: open %s", path)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", eris.Wrapf(err, "parser: gzip %s", path)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return "", eris.Wrapf(err, "parser: gunzip %s", path)
	}
	return string(data), nil
}

func parsePDF(ctx context.Context, binPath, path string) (string, error) {
	cmd := exec.CommandContext(ctx, binPath, "-layout", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "parser: pdftotext failed for %s: %s", path, stderr.String())
	}
	return stdout.String(), nil
}

// parseEPUB reads the XHTML chapter files out of the EPUB container in
// spine-ish (lexical) order and strips markup.
func parseEPUB(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", eris.Wrapf(err, "parser: open epub %s", path)
	}
	defer zr.Close()

	var names []string
	files := make(map[string]*zip.File)
	for _, f := range zr.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext == ".xhtml" || ext == ".html" || ext == ".htm" {
			names = append(names, f.Name)
			files[f.Name] = f
		}
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		rc, err := files[name].Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		text := strings.TrimSpace(htmlTagPattern.ReplaceAllString(string(data), "\n"))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func parseDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", eris.Wrapf(err, "parser: open docx %s", path)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrapf(err, "parser: docx body %s", path)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", eris.Wrapf(err, "parser: docx read %s", path)
		}
		return docxBodyText(data)
	}
	return "", eris.Errorf("parser: docx missing word/document.xml: %s", path)
}

// docxBodyText streams the document XML and collects <w:t> runs, inserting
// paragraph breaks at </w:p>.
func docxBodyText(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "parser: docx xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
			if t.Name.Local == "p" {
				b.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

var (
	rtfControlPattern = regexp.MustCompile(`\\[a-zA-Z]+-?\d*;?|\\'[0-9a-fA-F]{2}|[{}]`)
)

func parseRTF(path string) (string, error) {
	raw, err := parseText(path)
	if err != nil {
		return "", err
	}
	stripped := rtfControlPattern.ReplaceAllString(raw, " ")
	return strings.TrimSpace(stripped), nil
}
