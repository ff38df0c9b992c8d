package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/z-chat/backend/internal/store"
	"github.com/zhouzirui/z-chat/backend/internal/store/file"
	"github.com/zhouzirui/z-chat/backend/internal/store/memory"
	"github.com/zhouzirui/z-chat/backend/internal/store/s3store"
	"github.com/zhouzirui/z-chat/backend/internal/store/sqlite"
)

const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverS3     = "s3"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Chat    ChatConfig
	Storage StorageConfig
}

// Load 先读取 CONFIG_FILE 指向的 YAML 文件（可选），再用环境变量覆盖。
func Load() (*Config, error) {
	src, err := newSource(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(src)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(src)
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig(src)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Chat: loadChatConfig(src), Storage: storage}, nil
}

// source 按 环境变量 > 配置文件 的优先级取值。
// 配置文件是一个扁平的 YAML 映射，键名与环境变量相同。
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return source{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for key, value := range raw {
		if value == nil {
			continue
		}
		src.file[key] = strings.TrimSpace(fmt.Sprint(value))
	}
	return src, nil
}

func (s source) get(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return s.file[key]
}

func (s source) getOrDefault(key, defaultValue string) string {
	if value := s.get(key); value != "" {
		return value
	}
	return defaultValue
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址与 CORS 白名单。
func loadServerConfig(src source) (ServerConfig, error) {
	port := src.getOrDefault("PORT", "8080")

	origins := splitList(src.getOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	Timeout      time.Duration
	StartupProbe bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
// 温度与最大 token 数在每次调用时传入，这里不设置。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
		TopP:      topP,
	}
	if c.Timeout > 0 {
		timeout := c.Timeout
		cfg.Timeout = &timeout
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(src source) (AIConfig, error) {
	temperature, err := parseOptionalFloat(src, "ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat(src, "ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(src, "ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds := 60
	if override, err := parseOptionalInt(src, "AI_TIMEOUT_SECONDS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AIConfig{}, fmt.Errorf("invalid AI_TIMEOUT_SECONDS value %d: must be positive", *override)
		}
		timeoutSeconds = *override
	}

	probe, err := parseBool(src, "AI_STARTUP_PROBE", false)
	if err != nil {
		return AIConfig{}, err
	}

	// 兼容旧的 Model 变量名
	modelName := src.get("ARK_MODEL")
	if modelName == "" {
		modelName = src.get("Model")
	}

	return AIConfig{
		APIKey:       src.get("ARK_API_KEY"),
		AccessKey:    src.get("ARK_ACCESS_KEY"),
		SecretKey:    src.get("ARK_SECRET_KEY"),
		Model:        modelName,
		BaseURL:      src.getOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       src.getOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
		StartupProbe: probe,
	}, nil
}

// ChatConfig 描述会话相关的文案。空值表示使用内置默认值。
type ChatConfig struct {
	SystemPrompt string
	DefaultTitle string
}

func loadChatConfig(src source) ChatConfig {
	return ChatConfig{
		SystemPrompt: src.get("CHAT_SYSTEM_PROMPT"),
		DefaultTitle: src.get("CHAT_DEFAULT_TITLE"),
	}
}

// StorageConfig 选择会话存储后端。
type StorageConfig struct {
	Driver     string
	ChatsDir   string
	SQLitePath string
	S3         s3store.Config
}

func loadStorageConfig(src source) (StorageConfig, error) {
	driver := strings.ToLower(src.getOrDefault("STORAGE_DRIVER", DriverFile))
	switch driver {
	case DriverFile, DriverMemory, DriverSQLite, DriverS3:
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_DRIVER value %q: want file, memory, sqlite or s3", driver)
	}

	cfg := StorageConfig{
		Driver:     driver,
		ChatsDir:   src.getOrDefault("CHATS_DIR", "./chats"),
		SQLitePath: src.getOrDefault("SQLITE_PATH", "./data/chats.db"),
		S3: s3store.Config{
			Bucket:    src.get("S3_BUCKET"),
			Prefix:    src.getOrDefault("S3_PREFIX", "chats/"),
			Region:    src.get("S3_REGION"),
			Endpoint:  src.get("S3_ENDPOINT"),
			AccessKey: src.get("S3_ACCESS_KEY"),
			SecretKey: src.get("S3_SECRET_KEY"),
		},
	}
	if driver == DriverS3 && cfg.S3.Bucket == "" {
		return StorageConfig{}, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}
	return cfg, nil
}

// OpenBackend 按 Driver 创建存储后端，调用方负责 Close。
func (c StorageConfig) OpenBackend(ctx context.Context) (store.Backend, error) {
	switch c.Driver {
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		backend, err := sqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case DriverS3:
		backend, err := s3store.New(ctx, c.S3)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case DriverFile, "":
		return file.New(c.ChatsDir), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Driver)
	}
}

// Describe 返回用于启动日志的后端描述。
func (c StorageConfig) Describe() string {
	switch c.Driver {
	case DriverMemory:
		return "memory"
	case DriverSQLite:
		return "sqlite:" + c.SQLitePath
	case DriverS3:
		return "s3://" + c.S3.Bucket + "/" + c.S3.Prefix
	default:
		return "file:" + c.ChatsDir
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(src source, key string, defaultValue bool) (bool, error) {
	raw := src.get(key)
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloat(src source, key string) (*float64, error) {
	value := src.get(key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalInt(src source, key string) (*int, error) {
	value := src.get(key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
