package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/philippgille/chromem-go"
	"k8s.io/klog/v2"
)

// Retriever 基于 chromem 集合的相似度检索器，实现 eino retriever.Retriever
// 相似度低于阈值的片段会被丢弃，相当于对召回结果做一次压缩
type Retriever struct {
	collection     *chromem.Collection
	topK           int
	scoreThreshold float64
}

var _ retriever.Retriever = (*Retriever)(nil)

// NewRetriever 创建检索器
func NewRetriever(collection *chromem.Collection, topK int, scoreThreshold float64) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		collection:     collection,
		topK:           topK,
		scoreThreshold: scoreThreshold,
	}
}

// Retrieve 返回按相似度降序排列的片段
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := r.topK
	threshold := r.scoreThreshold
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK, ScoreThreshold: &threshold}, opts...)
	if options.TopK != nil {
		topK = *options.TopK
	}
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}

	// chromem 要求返回数量不超过集合大小
	count := r.collection.Count()
	if count == 0 {
		return []*schema.Document{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := r.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, res := range results {
		if float64(res.Similarity) < threshold {
			continue
		}
		metadata := make(map[string]any, len(res.Metadata))
		for k, v := range res.Metadata {
			metadata[k] = v
		}
		doc := &schema.Document{
			ID:       res.ID,
			Content:  res.Content,
			MetaData: metadata,
		}
		docs = append(docs, doc.WithScore(float64(res.Similarity)))
	}

	klog.V(6).Infof("[Retriever] 检索完成: topK=%d, hits=%d, kept=%d, threshold=%.2f", topK, len(results), len(docs), threshold)
	return docs, nil
}
