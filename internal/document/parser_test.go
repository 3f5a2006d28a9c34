package document

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

func createTempFile(t *testing.T, content, ext string) string {
	tmpFile, err := os.CreateTemp(t.TempDir(), "nerf-test-*"+ext)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

// createTempPDF 每个元素生成一页，空字符串生成空白页
func createTempPDF(t *testing.T, pages ...string) string {
	tmpFile, err := os.CreateTemp(t.TempDir(), "nerf-test-*.pdf")
	if err != nil {
		t.Fatalf("Failed to create temp PDF file: %v", err)
	}
	defer tmpFile.Close()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		if text != "" {
			pdf.MultiCell(0, 10, text, "", "", false)
		}
	}
	if err := pdf.Output(tmpFile); err != nil {
		t.Fatalf("Failed to write PDF: %v", err)
	}
	return tmpFile.Name()
}

func TestPlainTextParser(t *testing.T) {
	content := "Hello, this is a plain text file.\nSecond line."
	file := createTempFile(t, content, ".txt")

	parser := NewPlainTextParser()
	text, err := parser.Parse(file)
	if err != nil {
		t.Fatalf("PlainTextParser.Parse failed: %v", err)
	}
	if text != content {
		t.Errorf("Expected content unchanged, got: %q", text)
	}
}

func TestMarkdownParser(t *testing.T) {
	content := "# Title\n\nThis is a **markdown** file.\n\n- Item 1\n- Item 2"
	file := createTempFile(t, content, ".md")

	parser := NewMarkdownParser()
	text, err := parser.Parse(file)
	if err != nil {
		t.Fatalf("MarkdownParser.Parse failed: %v", err)
	}
	if !strings.Contains(text, "markdown file") {
		t.Errorf("Expected content not found in parsed text: %s", text)
	}
	if !strings.Contains(text, "Item 1") {
		t.Errorf("Expected list item not found in parsed text: %s", text)
	}
	if !strings.Contains(text, "\n") {
		t.Errorf("Expected paragraph breaks to survive, got: %q", text)
	}
}

func TestPDFParser(t *testing.T) {
	file := createTempPDF(t, "This is a PDF test.\nSecond line.")

	parser := NewPDFParser()
	text, err := parser.Parse(file)
	if err != nil {
		t.Fatalf("PDFParser.Parse failed: %v", err)
	}
	if !strings.Contains(text, "PDF test") {
		t.Errorf("Expected content not found in parsed PDF text: %s", text)
	}
	if !strings.HasSuffix(text, "\n") {
		t.Errorf("Expected page text to end with a newline, got: %q", text)
	}
}

func TestPDFParser_PageOrder(t *testing.T) {
	var pages []string
	for i := 1; i <= 11; i++ {
		pages = append(pages, fmt.Sprintf("Marker page %d", i))
	}
	file := createTempPDF(t, pages...)

	text, err := NewPDFParser().Parse(file)
	if err != nil {
		t.Fatalf("PDFParser.Parse failed: %v", err)
	}

	last := -1
	for i := 1; i <= 11; i++ {
		idx := strings.Index(text, fmt.Sprintf("Marker page %d\n", i))
		if idx < 0 {
			t.Fatalf("Page %d text missing from output: %q", i, text)
		}
		if idx < last {
			t.Errorf("Page %d appears before page %d", i, i-1)
		}
		last = idx
	}
}

func TestPDFParser_EmptyPage(t *testing.T) {
	file := createTempPDF(t, "First page has text", "")

	_, err := NewPDFParser().Parse(file)
	if !errors.Is(err, ErrEmptyPage) {
		t.Fatalf("Expected ErrEmptyPage, got: %v", err)
	}
	if !strings.Contains(err.Error(), "page 2") {
		t.Errorf("Expected error to name the page, got: %v", err)
	}
}

func TestPDFParser_InvalidFile(t *testing.T) {
	file := createTempFile(t, "not a pdf", ".pdf")

	if _, err := NewPDFParser().Parse(file); err == nil {
		t.Fatal("Expected error for invalid PDF")
	}
}

func TestParserFactory(t *testing.T) {
	txtFile := createTempFile(t, "plain text", ".txt")
	mdFile := createTempFile(t, "# Markdown", ".md")
	pdfFile := createTempPDF(t, "PDF content")

	tests := []struct {
		file     string
		expected string
	}{
		{txtFile, "plain text"},
		{mdFile, "Markdown"},
		{pdfFile, "PDF content"},
	}

	for _, tt := range tests {
		parser, err := ParserFactory(tt.file)
		if err != nil {
			t.Fatalf("ParserFactory failed for %s: %v", tt.file, err)
		}
		text, err := parser.Parse(tt.file)
		if err != nil {
			t.Fatalf("Parser.Parse failed for %s: %v", tt.file, err)
		}
		if !strings.Contains(text, tt.expected) {
			t.Errorf("Expected '%s' in parsed text, got: %s", tt.expected, text)
		}
	}
}

func TestParserFactory_Unsupported(t *testing.T) {
	_, err := ParserFactory("resume.docx")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Expected ErrUnsupportedType, got: %v", err)
	}
	if IsSupported("resume.docx") {
		t.Error("docx should not be supported")
	}
	if !IsSupported("Resume.PDF") {
		t.Error("extension matching should be case-insensitive")
	}
}
