package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Lock     LockConfig     `mapstructure:"lock"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	WorkerID int64  `mapstructure:"worker_id"`
	Mode     string `mapstructure:"mode"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TransactionResult string `mapstructure:"transaction_result"`
}

const (
	LockBackendRedis = "redis"
	LockBackendLocal = "local"
)

// LockConfig 账户锁配置
type LockConfig struct {
	Backend       string        `mapstructure:"backend"`
	Expiration    time.Duration `mapstructure:"expiration"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

type BusinessConfig struct {
	OutboxInterval  time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize int           `mapstructure:"outbox_batch_size"`
	MaxRetryCount   int           `mapstructure:"max_retry_count"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_id", 1)
	v.SetDefault("server.mode", "release")
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("kafka.topic.transaction_result", "account.transaction.result")
	v.SetDefault("lock.backend", LockBackendRedis)
	v.SetDefault("lock.expiration", 30*time.Second)
	v.SetDefault("lock.retry_interval", 100*time.Millisecond)
	v.SetDefault("lock.max_retries", 30)
	v.SetDefault("business.outbox_interval", 100*time.Millisecond)
	v.SetDefault("business.outbox_batch_size", 100)
	v.SetDefault("business.max_retry_count", 5)
}

// Load 加载配置文件，环境变量 ACCOUNT_XXX_YYY 覆盖 xxx.yyy
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("account")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Lock.Backend {
	case LockBackendRedis, LockBackendLocal:
	default:
		return errors.Errorf("不支持的锁类型: %s", c.Lock.Backend)
	}
	if c.Lock.MaxRetries <= 0 {
		return errors.New("lock.max_retries 必须大于0")
	}
	if c.Business.MaxRetryCount <= 0 {
		return errors.New("business.max_retry_count 必须大于0")
	}
	return nil
}
