package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"PPCollab/global"
	"PPCollab/global/config"
	"PPCollab/logger"
	mid "PPCollab/middleware"
	midsec "PPCollab/middleware/security"
	"PPCollab/service/auth"
	"PPCollab/service/chat"
	"PPCollab/service/kafka"
	"PPCollab/service/nacos"
	"PPCollab/service/natsx"
	"PPCollab/service/storage"
	redisx "PPCollab/service/storage/redis"
	"PPCollab/tools/errs"
	"PPCollab/tools/ids"
	"PPCollab/tools/safe"
	"PPCollab/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app 持有进程内所有可选集成，按依赖逆序关闭
type app struct {
	conf     *config.AppConfig
	settings *nacos.Settings
	watcher  *nacos.Watcher
	reg      *nacos.Registrar

	pool     *pgxpool.Pool
	rdb      *redis.Client
	presence *storage.RedisPresence

	nc        *natsx.NatsxClient
	idem      *natsx.MemIdem
	kc        *kafka.Consumer
	kafkaStop context.CancelFunc
	kafkaDone chan struct{}

	gw   *chat.Server
	http *http.Server
}

func serve(ctx context.Context, conf *config.AppConfig) error {
	if err := logger.SetLevel(conf.Log.Level); err != nil {
		logger.Warn("bad log.level, keep default", zap.String("level", conf.Log.Level))
	}
	a := &app{conf: conf, settings: nacos.NewSettings(conf.Log.Level, conf.Server.AllowedOrigins)}
	if err := a.start(ctx); err != nil {
		a.stop()
		return err
	}

	errCh := make(chan error, 1)
	safe.Go("http", func() {
		logger.Info("[HTTP] listening", zap.String("addr", conf.Server.Addr), zap.String("gateway", conf.Gateway.ID))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	case runErr = <-errCh:
		logger.Error("http server failed", zap.Error(runErr))
	}
	a.stop()
	return runErr
}

func (a *app) start(ctx context.Context) error {
	conf := a.conf

	nacosConf := nacos.ClientConfig{
		Addr:      conf.Nacos.Addr,
		Port:      conf.Nacos.Port,
		Namespace: conf.Nacos.Namespace,
		Username:  conf.Nacos.Username,
		Password:  conf.Nacos.Password,
	}
	if conf.NacosEnabled() {
		client, err := nacos.NewConfigClient(nacosConf)
		if err != nil {
			return err
		}
		w := nacos.NewWatcher(client, conf.Nacos.DataID, conf.Nacos.Group, a.settings)
		if err := w.Start(); err != nil {
			// 远端配置不可用时继续使用本地配置
			logger.Warn("nacos unavailable, using static settings", zap.Error(err))
		} else {
			a.watcher = w
		}
	}

	verifier, err := a.verifier(ctx)
	if err != nil {
		return err
	}

	opts := chat.Options{
		GatewayID:    conf.Gateway.ID,
		ReadLimit:    conf.Server.ReadLimit,
		WriteTimeout: conf.Server.WriteTimeout,
		IDs:          ids.NewGenerator(conf.Gateway.NodeID),
	}
	if conf.RedisEnabled() {
		a.rdb, err = redisx.NewClient(ctx, redisx.Config{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
			PoolSize: conf.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		a.presence = storage.NewRedisPresence(a.rdb, storage.PresenceConfig{GatewayID: conf.Gateway.ID, TTL: conf.Redis.PresenceTTL})
		a.presence.Start()
		opts.Presence = a.presence
	}
	a.gw = chat.NewServer(verifier, opts)
	if a.presence != nil {
		a.presence.Track(a.gw.Conns().OnlineUsers)
	}

	if err := a.startIngress(); err != nil {
		return err
	}

	if conf.NacosEnabled() && conf.Nacos.Register {
		if err := a.register(nacosConf); err != nil {
			return err
		}
	}

	a.http = &http.Server{
		Addr:              conf.Server.Addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// verifier picks JWT when a secret is configured, otherwise the static dev
// token table.
func (a *app) verifier(ctx context.Context) (auth.Verifier, error) {
	conf := a.conf.Auth
	if conf.JWTSecret == "" {
		logger.Warn("auth.jwt_secret empty, using static dev tokens", zap.Int("tokens", len(conf.Tokens)))
		sv := auth.StaticVerifier{}
		for tok, user := range conf.Tokens {
			sv[tok] = auth.Identity{UserID: user, Active: true}
		}
		return sv, nil
	}

	opts := security.DefaultOptions([]byte(conf.JWTSecret))
	opts.Alg = conf.Alg
	opts.Leeway = conf.Leeway

	var active auth.ActiveChecker
	if conf.PostgresDSN != "" {
		pool, err := auth.OpenPool(ctx, conf.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		active = auth.NewPgActiveChecker(pool)
	}
	return auth.NewJWTVerifier(opts, active), nil
}

func (a *app) register(nc nacos.ClientConfig) error {
	_, portStr, err := net.SplitHostPort(a.conf.Server.Addr)
	if err != nil {
		return errs.WrapMsg(err, "server.addr", "addr", a.conf.Server.Addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil {
		return errs.WrapMsg(err, "server.addr port", "port", portStr)
	}
	cli, err := nacos.NewNamingClient(nc)
	if err != nil {
		return err
	}
	r := nacos.NewRegistrar(cli, nacos.Instance{
		ServiceName: a.conf.Nacos.ServiceName,
		Group:       a.conf.Nacos.Group,
		IP:          a.conf.Nacos.AdvertiseIP,
		Port:        port,
		Metadata:    map[string]string{"gateway_id": a.conf.Gateway.ID, "protocol": "ws", "path": "/ws"},
	})
	if err := r.Register(); err != nil {
		return err
	}
	a.reg = r
	return nil
}

func (a *app) startIngress() error {
	conf := a.conf
	if conf.NatsEnabled() {
		nc, err := natsx.NewNatsxClient(natsx.NatsxConfig{Servers: conf.Nats.Servers, Name: conf.Nats.Name})
		if err != nil {
			return err
		}
		a.nc = nc
		a.idem, err = natsx.StartTaskIngress(nc, a.gw.Publisher(), natsx.TaskIngressConfig{
			Subject: conf.Nats.Subject,
			Queue:   conf.Nats.Queue,
			Durable: conf.Nats.Durable,
			IdemTTL: conf.Nats.IdemTTL,
		})
		if err != nil {
			return err
		}
	}

	if conf.KafkaEnabled() {
		kc, err := kafka.NewTaskConsumer(kafka.Config{
			Brokers:       conf.Kafka.Brokers,
			Topic:         conf.Kafka.Topic,
			GroupID:       conf.Kafka.GroupID,
			InitialOffset: conf.Kafka.InitialOffset,
			EnsureTopic:   conf.Kafka.EnsureTopic,
		}, a.gw.Publisher())
		if err != nil {
			return err
		}
		a.kc = kc
		kctx, cancel := context.WithCancel(context.Background())
		a.kafkaStop = cancel
		a.kafkaDone = make(chan struct{})
		safe.Go("kafka-ingress", func() {
			defer close(a.kafkaDone)
			kc.Run(kctx)
		})
		logger.Info("kafka task ingress", zap.Strings("brokers", conf.Kafka.Brokers), zap.String("topic", conf.Kafka.Topic))
	}
	return nil
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	mgr := mid.NewManager()
	mgr.Add(mid.Origin("/ws", a.settings.AllowedOrigins))
	r.Use(mgr.Use())

	r.GET("/up", func(c *gin.Context) {
		c.JSON(http.StatusOK, global.Success(gin.H{
			"gateway":     a.gw.GatewayID(),
			"connections": a.gw.Conns().ConnCount(),
		}))
	})

	// 握手鉴权失败需要先升级再以 1008 关闭，这里只提取凭证
	wsAuth := midsec.DefaultOptions()
	wsAuth.Required = false
	mid.GET(r, "/ws", a.gw.HandleWS, mid.RouteOpt{IsAuth: true, Auth: wsAuth})
	return r
}

// stop 先停入口，再断开所有连接，最后关闭存储
func (a *app) stop() {
	if a.reg != nil {
		if err := a.reg.Deregister(); err != nil {
			logger.Warn("nacos deregister", zap.Error(err))
		}
	}
	if a.kafkaStop != nil {
		a.kafkaStop()
		<-a.kafkaDone
		if err := a.kc.Close(); err != nil {
			logger.Warn("kafka close", zap.Error(err))
		}
	}
	if a.nc != nil {
		if err := a.nc.Close(); err != nil {
			logger.Warn("nats close", zap.Error(err))
		}
	}
	if a.idem != nil {
		a.idem.Stop()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownTimeout)
	defer cancel()
	if a.gw != nil {
		if err := a.gw.Shutdown(ctx); err != nil {
			logger.Warn("gateway shutdown", zap.Error(err))
		}
	}
	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	}

	if a.presence != nil {
		a.presence.Stop()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	logger.Info("bye")
}
