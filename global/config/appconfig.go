package config

import "time"

// AppConfig 进程的静态配置; 地址为空的外部依赖视为关闭
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Nats    NatsConfig    `mapstructure:"nats"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Nacos   NacosConfig   `mapstructure:"nacos"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"` // 空 = 不限制
}

type GatewayConfig struct {
	ID     string `mapstructure:"id"`      // 写入 presence 的网关标识
	NodeID int64  `mapstructure:"node_id"` // snowflake 节点号
}

type AuthConfig struct {
	JWTSecret   string            `mapstructure:"jwt_secret"`
	Alg         string            `mapstructure:"alg"`
	Leeway      time.Duration     `mapstructure:"leeway"`
	PostgresDSN string            `mapstructure:"postgres_dsn"` // 非空时校验 users.is_active
	Tokens      map[string]string `mapstructure:"tokens"`       // 本地开发: token -> user id
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

type NatsConfig struct {
	Servers []string      `mapstructure:"servers"`
	Name    string        `mapstructure:"name"`
	Subject string        `mapstructure:"subject"`
	Queue   string        `mapstructure:"queue"`
	Durable string        `mapstructure:"durable"`
	IdemTTL time.Duration `mapstructure:"idem_ttl"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	InitialOffset string   `mapstructure:"initial_offset"`
	EnsureTopic   bool     `mapstructure:"ensure_topic"`
}

type NacosConfig struct {
	Addr      string `mapstructure:"addr"`
	Port      uint64 `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DataID    string `mapstructure:"data_id"`
	Group     string `mapstructure:"group"`

	// 注册到 nacos 服务发现（ephemeral 实例）
	Register    bool   `mapstructure:"register"`
	ServiceName string `mapstructure:"service_name"`
	AdvertiseIP string `mapstructure:"advertise_ip"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
