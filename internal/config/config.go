package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了支付守护进程在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Outbox    OutboxConfig    `json:"outbox"`
	Events    EventsConfig    `json:"events"`
	Chain     ChainConfig     `json:"chain"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Oracle    OracleConfig    `json:"oracle"`
	Log       LogConfig       `json:"log"`
}

// ServerConfig 控制运维 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// StorageConfig 统一描述支付记录、托管钱包与身份映射的存储后端。
type StorageConfig struct {
	PaymentStore StoreConfig `json:"payment_store"`
	Keystore     StoreConfig `json:"keystore"`
	Directory    StoreConfig `json:"directory"`
}

// StoreConfig 描述单个存储后端。Driver 支持 memory 与 mysql。
type StoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// OutboxConfig 描述离线通知暂存队列的后端。
// Driver 支持 memory、redis 与 mysql。
type OutboxConfig struct {
	Driver string      `json:"driver"`
	DSN    string      `json:"dsn"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// EventsConfig 描述支付结果事件的发布通道。
// Driver 支持 memory 与 rabbitmq。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接与队列声明参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// ChainConfig 包含访问区块链节点所需的端点信息。
// ConfigPath 指向 chains.yaml；未提供时回退到单一 RPCURL。
type ChainConfig struct {
	ConfigPath   string `json:"config_path"`
	DefaultChain string `json:"default_chain"`
	RPCURL       string `json:"rpc_url"`
	ChainID      int64  `json:"chain_id"`
}

// SchedulerConfig 控制到期扫描器的节奏。
type SchedulerConfig struct {
	IntervalSeconds     int `json:"interval_seconds"`
	InitialDelaySeconds int `json:"initial_delay_seconds"`
}

// Interval 返回两次扫描之间的间隔。
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// InitialDelay 返回进程启动到第一次扫描的延迟。
func (c SchedulerConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelaySeconds) * time.Second
}

// OracleConfig 描述法币报价来源。
type OracleConfig struct {
	Enabled        bool   `json:"enabled"`
	BaseURL        string `json:"base_url"`
	Currency       string `json:"currency"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回单次报价请求的超时。
func (c OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogConfig 描述日志输出方式，字段与 pkg/logger 一一对应。
type LogConfig struct {
	Level       string         `json:"level"`
	Format      string         `json:"format"`
	OutputPaths []string       `json:"output_paths"`
	Audit       AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志的滚动策略。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.PaymentStore.Driver == "" {
		c.Storage.PaymentStore.Driver = "memory"
	}
	if c.Storage.Keystore.Driver == "" {
		c.Storage.Keystore.Driver = c.Storage.PaymentStore.Driver
	}
	if c.Storage.Keystore.DSN == "" {
		c.Storage.Keystore.DSN = c.Storage.PaymentStore.DSN
	}
	if c.Storage.Directory.Driver == "" {
		c.Storage.Directory.Driver = c.Storage.PaymentStore.Driver
	}
	if c.Storage.Directory.DSN == "" {
		c.Storage.Directory.DSN = c.Storage.PaymentStore.DSN
	}

	if c.Outbox.Driver == "" {
		c.Outbox.Driver = "memory"
	}
	if c.Outbox.Redis.KeyPrefix == "" {
		c.Outbox.Redis.KeyPrefix = "paybot:outbox"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = "payments.events"
	}

	if c.Chain.ConfigPath != "" && !filepath.IsAbs(c.Chain.ConfigPath) {
		c.Chain.ConfigPath = filepath.Join(baseDir, c.Chain.ConfigPath)
	}

	if c.Scheduler.IntervalSeconds <= 0 {
		c.Scheduler.IntervalSeconds = 60
	}
	if c.Scheduler.InitialDelaySeconds <= 0 {
		c.Scheduler.InitialDelaySeconds = 10
	}

	if c.Oracle.BaseURL == "" {
		c.Oracle.BaseURL = "https://api.coingecko.com"
	}
	if c.Oracle.Currency == "" {
		c.Oracle.Currency = "usd"
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 10
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Audit.Enabled && c.Log.Audit.Path == "" {
		c.Log.Audit.Path = filepath.Join(baseDir, "logs", "audit.log")
	}
}
