package nacos

import (
	"PPCollab/tools/errs"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

type ClientConfig struct {
	Addr      string
	Port      uint64
	Namespace string
	Username  string
	Password  string
	TimeoutMs uint64
	LogLevel  string
	CacheDir  string
	LogDir    string
}

func (c *ClientConfig) norm() {
	if c.Port == 0 {
		c.Port = 8848
	}
	if c.Namespace == "" {
		c.Namespace = "public"
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 5000
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.CacheDir == "" {
		c.CacheDir = "nacos/cache"
	}
	if c.LogDir == "" {
		c.LogDir = "nacos/log"
	}
}

// NewConfigClient builds a nacos config client for one server.
func NewConfigClient(c ClientConfig) (config_client.IConfigClient, error) {
	c.norm()
	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig: constant.NewClientConfig(
			constant.WithNamespaceId(c.Namespace),
			constant.WithTimeoutMs(c.TimeoutMs),
			constant.WithNotLoadCacheAtStart(true),
			constant.WithLogLevel(c.LogLevel),
			constant.WithCacheDir(c.CacheDir),
			constant.WithLogDir(c.LogDir),
			constant.WithUsername(c.Username),
			constant.WithPassword(c.Password),
		),
		ServerConfigs: []constant.ServerConfig{
			*constant.NewServerConfig(c.Addr, c.Port),
		},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "create nacos ConfigClient", "addr", c.Addr, "port", c.Port)
	}
	return client, nil
}
