package nacos

import (
	"PPCollab/logger"
	"PPCollab/tools/errs"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

// Instance 网关在注册中心里的样子
type Instance struct {
	ServiceName string
	Group       string
	IP          string
	Port        uint64
	Metadata    map[string]string
}

type namingSource interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
}

func NewNamingClient(c ClientConfig) (naming_client.INamingClient, error) {
	c.norm()
	client, err := clients.NewNamingClient(vo.NacosClientParam{
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
		return nil, errs.WrapMsg(err, "create nacos NamingClient", "addr", c.Addr)
	}
	return client, nil
}

// Registrar registers one ephemeral instance and removes it on shutdown.
type Registrar struct {
	cli  namingSource
	inst Instance
}

func NewRegistrar(cli namingSource, inst Instance) *Registrar {
	if inst.Group == "" {
		inst.Group = "DEFAULT_GROUP"
	}
	return &Registrar{cli: cli, inst: inst}
}

func (r *Registrar) Register() error {
	ok, err := r.cli.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          r.inst.IP,
		Port:        r.inst.Port,
		ServiceName: r.inst.ServiceName,
		GroupName:   r.inst.Group,
		ClusterName: "DEFAULT",
		Weight:      1,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    r.inst.Metadata,
	})
	if err == nil && !ok {
		err = errs.ErrServerInternal.WrapMsg("nacos refused registration")
	}
	if err != nil {
		return errs.WrapMsg(err, "register instance", "service", r.inst.ServiceName, "ip", r.inst.IP, "port", r.inst.Port)
	}
	logger.Info("nacos registered", zap.String("service", r.inst.ServiceName), zap.String("ip", r.inst.IP), zap.Uint64("port", r.inst.Port))
	return nil
}

func (r *Registrar) Deregister() error {
	_, err := r.cli.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          r.inst.IP,
		Port:        r.inst.Port,
		ServiceName: r.inst.ServiceName,
		GroupName:   r.inst.Group,
		Cluster:     "DEFAULT",
		Ephemeral:   true,
	})
	if err != nil {
		return errs.WrapMsg(err, "deregister instance", "service", r.inst.ServiceName)
	}
	return nil
}
