package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	// AllowedOrigins 为空表示 /ws 接受任意来源的页面
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LedgerConfig struct {
	// DefaultNetwork 首次启动 (存储中没有已选网络) 时使用
	DefaultNetwork string        `mapstructure:"default_network"`
	CustomURL      string        `mapstructure:"custom_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ReserveTTL     time.Duration `mapstructure:"reserve_ttl"`
}

type RelayConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type RuntimeConfig struct {
	Broker     string        `mapstructure:"broker"` // "memory", "redis" or "kafka"
	AckTimeout time.Duration `mapstructure:"ack_timeout"`
	InstanceID string        `mapstructure:"instance_id"` // 为空时启动时生成
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "file" or "redis"
	Path   string `mapstructure:"path"`
}

type WalletConfig struct {
	Password string `mapstructure:"password"` // 通常通过环境变量 WALLET_PASSWORD 传入
	ScryptN  int    `mapstructure:"scrypt_n"`
}

type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type TelemetryConfig struct {
	Topic         string        `mapstructure:"topic"`
	RelayInterval time.Duration `mapstructure:"relay_interval"`
	PruneAfter    time.Duration `mapstructure:"prune_after"`
	// Async 为 true 时确认结果经 asynq 队列异步写库 (需要 redis)
	Async bool `mapstructure:"async"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置: ledger.default_network -> LEDGER_DEFAULT_NETWORK
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(replacer())

	SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// SetDefaults 注册所有默认值，测试中可以对独立的 viper 实例调用
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.allowed_origins", []string{})

	v.SetDefault("ledger.default_network", "testnet")
	v.SetDefault("ledger.timeout", 10*time.Second)
	v.SetDefault("ledger.poll_interval", time.Second)
	v.SetDefault("ledger.reserve_ttl", 30*time.Second)

	v.SetDefault("relay.probe_timeout", time.Second)

	v.SetDefault("runtime.broker", "memory")
	v.SetDefault("runtime.ack_timeout", 5*time.Second)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "./data")

	v.SetDefault("wallet.scrypt_n", 262144)

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "gem_user")
	v.SetDefault("db.password", "gem_password")
	v.SetDefault("db.name", "gem_db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("telemetry.topic", "gem.telemetry")
	v.SetDefault("telemetry.relay_interval", 500*time.Millisecond)
	v.SetDefault("telemetry.prune_after", 10*time.Minute)
	v.SetDefault("telemetry.async", false)

	v.SetDefault("worker.concurrency", 4)
}

func replacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
