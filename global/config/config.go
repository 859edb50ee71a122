package config

import (
	"errors"
	"strings"
	"time"

	"PPCollab/tools/errs"

	"github.com/spf13/viper"
)

const EnvPrefix = "COLLAB"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_limit", 1<<20)
	v.SetDefault("server.write_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("gateway.id", "gateway_01")
	v.SetDefault("gateway.node_id", 1)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.alg", "HS256")
	v.SetDefault("auth.leeway", 30*time.Second)
	v.SetDefault("auth.postgres_dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.presence_ttl", 60*time.Second)

	v.SetDefault("nats.servers", []string{})
	v.SetDefault("nats.name", "ppcollab-gateway")
	v.SetDefault("nats.subject", "collab.task_events")
	v.SetDefault("nats.queue", "")
	v.SetDefault("nats.durable", "")
	v.SetDefault("nats.idem_ttl", 2*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "collab.task_events")
	v.SetDefault("kafka.group_id", "ppcollab-gateway")
	v.SetDefault("kafka.initial_offset", "newest")
	v.SetDefault("kafka.ensure_topic", false)

	v.SetDefault("nacos.addr", "")
	v.SetDefault("nacos.port", 8848)
	v.SetDefault("nacos.namespace", "public")
	v.SetDefault("nacos.username", "")
	v.SetDefault("nacos.password", "")
	v.SetDefault("nacos.data_id", "ppcollab.yaml")
	v.SetDefault("nacos.group", "DEFAULT_GROUP")
	v.SetDefault("nacos.register", false)
	v.SetDefault("nacos.service_name", "ppcollab-gateway")
	v.SetDefault("nacos.advertise_ip", "127.0.0.1")

	v.SetDefault("log.level", "info")
}

// Load reads defaults, then the YAML file (path, or ./collab.yaml when path
// is empty and the file exists), then COLLAB_* environment variables, e.g.
// COLLAB_REDIS_ADDR overrides redis.addr.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("collab")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
	}

	var conf AppConfig
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal config")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate 检查启动必需项
func (c *AppConfig) Validate() error {
	if c.Auth.JWTSecret == "" && len(c.Auth.Tokens) == 0 {
		return errors.New("config: auth.jwt_secret or auth.tokens is required")
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is empty")
	}
	if c.Gateway.ID == "" {
		return errors.New("config: gateway.id is empty")
	}
	return nil
}

func (c *AppConfig) RedisEnabled() bool { return c.Redis.Addr != "" }
func (c *AppConfig) NatsEnabled() bool  { return len(c.Nats.Servers) > 0 }
func (c *AppConfig) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }
func (c *AppConfig) NacosEnabled() bool { return c.Nacos.Addr != "" }
