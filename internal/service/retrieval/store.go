package retrieval

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"k8s.io/klog/v2"
)

// 片段元数据键
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
	MetaLoader     = "loader"
	MetaIndexedAt  = "indexed_at"
)

// ErrEmptyDocument 文档中没有可索引的文本
var ErrEmptyDocument = errors.New("no text extracted from document")

// StoreOptions 向量库配置
type StoreOptions struct {
	Dir            string // 为空时使用内存库
	EmbeddingFunc  chromem.EmbeddingFunc
	Splitter       *Splitter
	TopK           int
	ScoreThreshold float64
}

// Store 管理每个会话的向量集合
type Store struct {
	db   *chromem.DB
	opts StoreOptions
}

// NewStore 创建向量库
func NewStore(opts StoreOptions) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if opts.Dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
	}
	if opts.Splitter == nil {
		opts.Splitter, err = NewSplitter(context.Background(), defaultChunkSize, defaultChunkOverlap)
		if err != nil {
			return nil, err
		}
	}
	klog.V(6).Infof("[Store] 向量库初始化完成: dir=%q, collections=%d", opts.Dir, len(db.ListCollections()))
	return &Store{db: db, opts: opts}, nil
}

// NewOllamaEmbeddingFunc 使用本地 Ollama 生成向量
func NewOllamaEmbeddingFunc(model, baseURL string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOllama(model, baseURL)
}

// Index 切分并写入一个文档，返回片段数
// 同名集合会被重建，一个会话只对应一份文档
func (s *Store) Index(ctx context.Context, collection, source, loader string, pages []Page) (int, error) {
	chunks, err := s.opts.Splitter.Split(ctx, source, pages)
	if err != nil {
		return 0, err
	}

	indexedAt := time.Now().UTC().Format(time.RFC3339)
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		page, _ := chunk.MetaData[MetaPage].(int)
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s_p%d_c%d", collection, page, i),
			Content: chunk.Content,
			Metadata: map[string]string{
				MetaSource:     source,
				MetaPage:       strconv.Itoa(page),
				MetaChunkIndex: strconv.Itoa(i),
				MetaLoader:     loader,
				MetaIndexedAt:  indexedAt,
			},
		})
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}

	if err := s.Delete(collection); err != nil {
		return 0, err
	}
	c, err := s.db.GetOrCreateCollection(collection, map[string]string{MetaSource: source}, s.opts.EmbeddingFunc)
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}
	klog.V(6).Infof("[Store] 文档索引完成: collection=%s, source=%s, chunks=%d", collection, source, len(docs))
	return len(docs), nil
}

// Retriever 返回集合对应的检索器，集合不存在时返回 nil
func (s *Store) Retriever(collection string) *Retriever {
	c := s.db.GetCollection(collection, s.opts.EmbeddingFunc)
	if c == nil {
		return nil
	}
	return NewRetriever(c, s.opts.TopK, s.opts.ScoreThreshold)
}

// Delete 删除集合，集合不存在时忽略
func (s *Store) Delete(collection string) error {
	if s.db.GetCollection(collection, s.opts.EmbeddingFunc) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	klog.V(6).Infof("[Store] 集合已删除: collection=%s", collection)
	return nil
}
