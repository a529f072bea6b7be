package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"k8s.io/klog/v2"
)

// 加载器名称
const (
	LoaderPDF  = "pdf"
	LoaderText = "text"
)

// ErrUnsupportedDocument 无法处理的文件类型或加载器
var ErrUnsupportedDocument = errors.New("unsupported document")

// Page 加载后的一页文本
type Page struct {
	Number  int
	Content string
}

// Loader 把文件读取为分页文本
type Loader interface {
	Name() string
	Load(ctx context.Context, path string) ([]Page, error)
}

// LoaderFor 选择加载器，name 为空时按扩展名判断
func LoaderFor(name, filename string) (Loader, error) {
	if name == "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".pdf":
			name = LoaderPDF
		case ".txt", ".md", ".markdown", ".csv":
			name = LoaderText
		default:
			return nil, fmt.Errorf("%w: file type %q", ErrUnsupportedDocument, filepath.Ext(filename))
		}
	}

	switch name {
	case LoaderPDF:
		return PDFLoader{}, nil
	case LoaderText:
		return TextLoader{}, nil
	}
	return nil, fmt.Errorf("%w: loader %q", ErrUnsupportedDocument, name)
}

// PDFLoader 逐页提取 PDF 纯文本
type PDFLoader struct{}

func (PDFLoader) Name() string { return LoaderPDF }

func (PDFLoader) Load(ctx context.Context, path string) ([]Page, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	pageCount := reader.NumPage()
	pages := make([]Page, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			klog.Warningf("[PDFLoader] 页面文本提取失败: path=%s, page=%d, err=%v", path, i, err)
			continue
		}
		text = cleanText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Content: text})
	}

	klog.V(6).Infof("[PDFLoader] PDF 加载完成: path=%s, pages=%d/%d", path, len(pages), pageCount)
	return pages, nil
}

// TextLoader 读取纯文本文件，整体作为一页
type TextLoader struct{}

func (TextLoader) Name() string { return LoaderText }

func (TextLoader) Load(ctx context.Context, path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	text := cleanText(string(data))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Content: text}}, nil
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}
