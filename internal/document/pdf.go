package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser PDF文档解析器
// pdfcpu负责校验文件并给出页数，ledongthuc/pdf按字体编码解码每页文本；
// 每页文本后追加一个换行符，按页码顺序拼接
type PDFParser struct {
	conf *model.Configuration
}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFParser{conf: conf}
}

// Parse 解析PDF文件并提取其文本内容
func (p *PDFParser) Parse(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file: %w", err)
	}
	return p.parse(data)
}

// ParseReader 读取全部内容后解析，PDF需要随机访问
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to buffer PDF %s: %w", filename, err)
	}
	return p.parse(data)
}

func (p *PDFParser) parse(data []byte) (string, error) {
	pageCount, err := api.PageCount(bytes.NewReader(data), p.conf)
	if err != nil {
		return "", fmt.Errorf("invalid PDF: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= pageCount; i++ {
		content, err := pageText(reader, i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if content == "" {
			return "", fmt.Errorf("page %d: %w", i, ErrEmptyPage)
		}
		text.WriteString(content)
		text.WriteString("\n")
	}

	return text.String(), nil
}

// pageText 提取单页文本，字体资源按页解析
func pageText(reader *pdf.Reader, num int) (string, error) {
	page := reader.Page(num)
	if page.V.IsNull() {
		return "", ErrEmptyPage
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
