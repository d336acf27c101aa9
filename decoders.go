package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unioffice/v2/common/license"
	"github.com/unidoc/unioffice/v2/document"
	"github.com/xuri/excelize/v2"
)

func decodeText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrDecode, path)
	}
	return string(data), nil
}

func decodePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// decodeXLSX renders every sheet as tab-separated rows under a "# <sheet>" heading.
func decodeXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer f.Close()

	var builder strings.Builder
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("%w: sheet %s: %v", ErrDecode, sheet, err)
		}
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("# " + sheet + "\n")
		for _, row := range rows {
			builder.WriteString(strings.Join(row, "\t"))
			builder.WriteString("\n")
		}
	}
	return strings.TrimSpace(builder.String()), nil
}

// docxDecoder activates the UniDoc licence on first use; a rejected key
// makes the capability unavailable for the rest of the process.
type docxDecoder struct {
	key     string
	once    sync.Once
	initErr error
}

func newDocxDecoder(key string) *docxDecoder {
	return &docxDecoder{key: key}
}

func (d *docxDecoder) Decode(path string) (string, error) {
	d.once.Do(func() {
		if err := license.SetMeteredKey(d.key); err != nil {
			d.initErr = fmt.Errorf("%w: docx decoder licence rejected: %v", ErrMissingDependency, err)
		}
	})
	if d.initErr != nil {
		return "", d.initErr
	}

	doc, err := document.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer doc.Close()

	paragraphs := make([]string, 0, len(doc.Paragraphs()))
	for _, p := range doc.Paragraphs() {
		var line strings.Builder
		for _, run := range p.Runs() {
			line.WriteString(run.Text())
		}
		paragraphs = append(paragraphs, line.String())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}
