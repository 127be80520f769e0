// Package extract turns attachment files into plain text for embedding.
// The loader is selected by file extension: pdf, docx/doc, txt, and csv get
// dedicated extractors; anything else falls back to a raw text read.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Kind identifies the extractor chosen for a file.
type Kind string

const (
	// KindPDF extracts text from PDF pages.
	KindPDF Kind = "pdf"
	// KindDocx extracts paragraph text from Word documents.
	KindDocx Kind = "docx"
	// KindText reads the file verbatim.
	KindText Kind = "text"
	// KindCSV flattens CSV rows into comma-joined lines.
	KindCSV Kind = "csv"
	// KindGeneric is the structured-document fallback: a raw text read.
	KindGeneric Kind = "generic"
)

// KindForPath returns the extractor kind the dispatch table selects for path.
// Kept separate from Text so the table is unit-testable without fixtures.
func KindForPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF
	case ".docx", ".doc":
		return KindDocx
	case ".txt":
		return KindText
	case ".csv":
		return KindCSV
	default:
		return KindGeneric
	}
}

// Text extracts the plain-text content of the file at path.
func Text(path string) (string, error) {
	var (
		content string
		err     error
	)
	switch KindForPath(path) {
	case KindPDF:
		content, err = pdfText(path)
	case KindDocx:
		content, err = docxText(path)
	case KindCSV:
		content, err = csvText(path)
	default:
		content, err = plainText(path)
	}
	if err != nil {
		return "", fmt.Errorf("extract: cannot load file %s: %w", path, err)
	}
	return content, nil
}

// pdfText extracts the concatenated page text of a PDF.
func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}

// docxText extracts paragraph text from a Word document. A .docx file is a
// zip archive whose word/document.xml holds the body; text lives in <w:t>
// elements and paragraphs end at </w:p>.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// csvText flattens CSV rows into comma-joined lines so tabular content
// embeds as readable text.
func csvText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are fine; we only flatten

	var sb strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read csv: %w", err)
		}
		sb.WriteString(strings.Join(record, ", "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// plainText reads the file verbatim.
func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}
