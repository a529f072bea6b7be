package main

import (
	"context"
	"flag"
	"log"
	"os"

	"k8s.io/klog/v2"

	"github.com/opendeepwiki/ragchat/config"
	"github.com/opendeepwiki/ragchat/internal/eventbus"
	"github.com/opendeepwiki/ragchat/internal/handler"
	"github.com/opendeepwiki/ragchat/internal/pkg/database"
	"github.com/opendeepwiki/ragchat/internal/pkg/llm"
	"github.com/opendeepwiki/ragchat/internal/repository"
	"github.com/opendeepwiki/ragchat/internal/router"
	"github.com/opendeepwiki/ragchat/internal/service"
	"github.com/opendeepwiki/ragchat/internal/service/retrieval"
	"github.com/opendeepwiki/ragchat/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	for _, dir := range []string{cfg.Data.Dir, cfg.Data.UploadDir, cfg.Data.VectorDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory %s: %v", dir, err)
		}
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	splitter, err := retrieval.NewSplitter(context.Background(), cfg.Retriever.ChunkSize, cfg.Retriever.ChunkOverlap)
	if err != nil {
		log.Fatalf("Failed to create text splitter: %v", err)
	}

	// 向量库，嵌入使用本地 Ollama
	store, err := retrieval.NewStore(retrieval.StoreOptions{
		Dir:            cfg.Data.VectorDir,
		EmbeddingFunc:  retrieval.NewOllamaEmbeddingFunc(cfg.Embedding.Model, cfg.Embedding.APIURL),
		Splitter:       splitter,
		TopK:           cfg.Retriever.TopK,
		ScoreThreshold: cfg.Retriever.ScoreThreshold,
	})
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}

	// 推理模型与回答模型
	adapters, err := llm.NewAdapters(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create model adapters: %v", err)
	}

	// 事件总线
	chatBus := eventbus.NewChatEventBus()
	subscriber.NewChatEventSubscriber(sessionRepo).Register(chatBus)

	// 初始化 Service
	sessions := service.NewSessionManager(sessionRepo, messageRepo, store, adapters.Reasoning, adapters.Answer, chatBus)
	chatService := service.NewChatService(sessions, chatBus)
	docService := service.NewDocumentService(cfg, store, sessions)

	// 初始化 Handler
	sessionHandler := handler.NewSessionHandler(sessions)
	docHandler := handler.NewDocumentHandler(docService)
	chatHandler := handler.NewChatHandler(chatService, sessions)

	// 设置路由
	r := router.Setup(cfg, sessionHandler, docHandler, chatHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
