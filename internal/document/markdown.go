package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 遍历语法树提取纯文本，链接地址以括号形式保留
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open markdown file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown file %s: %w", filename, err)
	}
	return markdownText(content), nil
}

// markdownText 将Markdown转换为按段落换行的纯文本
func markdownText(content []byte) string {
	doc := parser.NewWithExtensions(parser.CommonExtensions).Parse(content)

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.Code:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.CodeBlock:
			if entering {
				b.Write(n.Literal)
				b.WriteString("\n\n")
			}
		case *ast.Softbreak, *ast.Hardbreak:
			if entering {
				b.WriteString("\n")
			}
		case *ast.Link:
			if !entering && len(n.Destination) > 0 {
				fmt.Fprintf(&b, " (%s)", n.Destination)
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("- ")
			}
		case *ast.TableCell:
			if !entering {
				b.WriteString(" ")
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.TableRow:
			if !entering {
				b.WriteString("\n")
			}
		}
		return ast.GoToNext
	})

	return normalizeWhitespace(b.String())
}

// normalizeWhitespace 压缩行内空白，最多保留一个空行
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
