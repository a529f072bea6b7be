package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Data      DataConfig      `yaml:"data"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

// LLMConfig 本地模型运行器（Ollama 等 OpenAI 兼容接口）配置
type LLMConfig struct {
	APIURL    string      `yaml:"api_url"`
	APIKey    string      `yaml:"api_key"`
	Reasoning ModelConfig `yaml:"reasoning"` // 分类与推理使用的模型
	Answer    ModelConfig `yaml:"answer"`    // 最终回答使用的模型
}

// ModelConfig 单个模型适配器的生成参数
type ModelConfig struct {
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature,omitempty"` // 为空时使用模型默认值
	Stream      bool     `yaml:"stream"`
	Stop        []string `yaml:"stop,omitempty"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type EmbeddingConfig struct {
	APIURL string `yaml:"api_url"` // Ollama 原生接口地址，如 http://localhost:11434/api
	Model  string `yaml:"model"`
}

type RetrieverConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"` // 低于该相似度的片段会被过滤
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
}

type DataConfig struct {
	Dir       string `yaml:"dir"`
	UploadDir string `yaml:"upload_dir"`
	VectorDir string `yaml:"vector_dir"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

// Default 返回内置默认配置
func Default() *Config {
	var answerTemperature float32
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			APIURL: "http://localhost:11434/v1",
			APIKey: "ollama",
			Reasoning: ModelConfig{
				Model:  "deepseek-r1:7b",
				Stream: true,
				Stop:   []string{"</think>"},
			},
			Answer: ModelConfig{
				Model:       "exaone3.5",
				Temperature: &answerTemperature,
				Stream:      true,
			},
		},
		Embedding: EmbeddingConfig{
			APIURL: "http://localhost:11434/api",
			Model:  "bge-m3",
		},
		Retriever: RetrieverConfig{
			TopK:           5,
			ScoreThreshold: 0.3,
			ChunkSize:      500,
			ChunkOverlap:   50,
		},
		Data: DataConfig{
			Dir: "./data",
		},
	}
}

func loadConfig() *Config {
	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if model := os.Getenv("REASONING_MODEL"); model != "" {
		config.LLM.Reasoning.Model = model
	}
	if model := os.Getenv("ANSWER_MODEL"); model != "" {
		config.LLM.Answer.Model = model
	}

	if embedURL := os.Getenv("EMBEDDING_BASE_URL"); embedURL != "" {
		config.Embedding.APIURL = embedURL
	}
	if embedModel := os.Getenv("EMBEDDING_MODEL"); embedModel != "" {
		config.Embedding.Model = embedModel
	}
	if topK := os.Getenv("RETRIEVER_TOP_K"); topK != "" {
		if v, err := strconv.Atoi(topK); err == nil && v > 0 {
			config.Retriever.TopK = v
		}
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}
	if config.Data.UploadDir == "" {
		config.Data.UploadDir = filepath.Join(config.Data.Dir, "uploads")
	}
	if config.Data.VectorDir == "" {
		config.Data.VectorDir = filepath.Join(config.Data.Dir, "vectors")
	}
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func UpdateConfig(newCfg *Config) {
	cfg = newCfg
}
