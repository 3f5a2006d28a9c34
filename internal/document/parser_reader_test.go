package document

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserReaderImplementations(t *testing.T) {
	// 测试纯文本解析器
	t.Run("PlainText", func(t *testing.T) {
		content := "Hello, this is plain text."
		reader := strings.NewReader(content)

		parser := NewPlainTextParser()
		result, err := parser.ParseReader(reader, "test.txt")

		assert.NoError(t, err)
		assert.Equal(t, content, result)
	})

	// 测试Markdown解析器
	t.Run("Markdown", func(t *testing.T) {
		content := "# Heading\n\nThis is **markdown** text."
		reader := strings.NewReader(content)

		parser := NewMarkdownParser()
		result, err := parser.ParseReader(reader, "test.md")

		assert.NoError(t, err)
		assert.Contains(t, result, "Heading")
		assert.Contains(t, result, "markdown")
	})

	t.Run("PDF", func(t *testing.T) {
		data, err := os.ReadFile(createTempPDF(t, "Jane Doe", "Software Engineer"))
		require.NoError(t, err)

		result, err := NewPDFParser().ParseReader(bytes.NewReader(data), "resume.pdf")

		require.NoError(t, err)
		assert.Equal(t, "Jane Doe\nSoftware Engineer\n", result)
	})
}

// rawPDF 用给定的内容流逐页拼出一个最小PDF，字体为WinAnsi编码的Helvetica
func rawPDF(streams ...string) []byte {
	n := len(streams)
	fontObj := 3 + 2*n
	var objects []string

	kids := make([]string, n)
	for i := range streams {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	)
	for i, stream := range streams {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFParser_HexStrings(t *testing.T) {
	data := rawPDF("BT /F1 12 Tf 72 720 Td <4A616E6520536D697468> Tj ET")

	result, err := NewPDFParser().ParseReader(bytes.NewReader(data), "resume.pdf")

	require.NoError(t, err)
	assert.Equal(t, "Jane Smith\n", result)
}

func TestPDFParser_TextArrays(t *testing.T) {
	data := rawPDF(
		"BT /F1 12 Tf 72 720 Td [(Data ) -20 (Scientist)] TJ ET",
		"BT /F1 12 Tf 72 720 Td (jane@example.com) Tj ET",
	)

	result, err := NewPDFParser().ParseReader(bytes.NewReader(data), "resume.pdf")

	require.NoError(t, err)
	assert.Equal(t, "Data Scientist\njane@example.com\n", result)
}

func TestPDFParser_GraphicsOnlyPage(t *testing.T) {
	data := rawPDF(
		"BT /F1 12 Tf 72 720 Td (Jane Smith) Tj ET",
		"0.57 w 0 G q 1 0 0 1 0 0 cm Q",
	)

	_, err := NewPDFParser().ParseReader(bytes.NewReader(data), "resume.pdf")
	assert.ErrorIs(t, err, ErrEmptyPage)
}

func TestMarkdownText(t *testing.T) {
	content := "# Jane Doe\n\nSoftware engineer at **Acme**.\n\n" +
		"- Go\n- Kubernetes\n\nSee [my site](https://jane.dev) or `jane@example.com`.\n"

	text := markdownText([]byte(content))

	assert.Contains(t, text, "Jane Doe\n\nSoftware engineer at Acme.")
	assert.Contains(t, text, "- Go")
	assert.Contains(t, text, "- Kubernetes")
	assert.Contains(t, text, "my site (https://jane.dev)")
	assert.Contains(t, text, "jane@example.com")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "\n\n\n")
}

func TestPlainTextParser_Normalizes(t *testing.T) {
	parser := NewPlainTextParser()

	result, err := parser.ParseReader(bytes.NewReader(append([]byte{0xEF, 0xBB, 0xBF}, "Jane\r\nDoe"...)), "cv.txt")
	require.NoError(t, err)
	assert.Equal(t, "Jane\nDoe", result)

	_, err = parser.ParseReader(bytes.NewReader([]byte{0xff, 0xfe, 0x00}), "cv.txt")
	assert.Error(t, err)
}
