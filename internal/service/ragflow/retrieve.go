package ragflow

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"
)

// Retrieve 把查询交给外部检索器，原样返回检索结果
func Retrieve(ctx context.Context, r retriever.Retriever, query string) ([]*schema.Document, error) {
	if r == nil {
		return nil, ErrRetrieverUnconfigured
	}

	klog.V(6).Infof("[Retrieve] 文档检索开始: query=%s", query)
	docs, err := r.Retrieve(ctx, query)
	if err != nil {
		klog.Errorf("[Retrieve] 文档检索失败: %v", err)
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	if docs == nil {
		docs = []*schema.Document{}
	}
	klog.V(6).Infof("[Retrieve] 文档检索完成: count=%d", len(docs))
	return docs, nil
}
