package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainTextParser 纯文本解析器，要求UTF-8编码
type PlainTextParser struct{}

// NewPlainTextParser 创建纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open text file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 读取文本，去掉BOM并统一换行符
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read text file %s: %w", filename, err)
	}
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return "", fmt.Errorf("text file %s is not valid UTF-8", filename)
	}
	return strings.ReplaceAll(string(content), "\r\n", "\n"), nil
}
