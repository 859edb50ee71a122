package nacos

import (
	"strings"
	"sync/atomic"

	"PPCollab/logger"
	"PPCollab/tools/decode"
	"PPCollab/tools/errs"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LiveSettings are the knobs that can change without a restart.
type LiveSettings struct {
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ParseSettings decodes a YAML document into LiveSettings.
func ParseSettings(data string) (LiveSettings, error) {
	m := map[string]any{}
	if strings.TrimSpace(data) != "" {
		if err := yaml.Unmarshal([]byte(data), &m); err != nil {
			return LiveSettings{}, errs.WrapMsg(err, "yaml")
		}
	}
	out, err := decode.DecodeMap[LiveSettings](m)
	if err != nil {
		return LiveSettings{}, err
	}
	return *out, nil
}

// Settings holds the current LiveSettings. Readers never block.
type Settings struct {
	cur      atomic.Pointer[LiveSettings]
	fallback []string
}

// NewSettings starts from static defaults; origins is used until a remote
// document provides its own list.
func NewSettings(logLevel string, origins []string) *Settings {
	s := &Settings{fallback: append([]string(nil), origins...)}
	s.cur.Store(&LiveSettings{LogLevel: logLevel, AllowedOrigins: s.fallback})
	return s
}

func (s *Settings) Current() LiveSettings { return *s.cur.Load() }

// AllowedOrigins is what the origin middleware polls per request.
func (s *Settings) AllowedOrigins() []string { return s.cur.Load().AllowedOrigins }

// Apply stores ls and pushes the log level into the logger. An invalid level
// keeps the previous one.
func (s *Settings) Apply(ls LiveSettings) {
	prev := s.cur.Load()
	if ls.LogLevel == "" {
		ls.LogLevel = prev.LogLevel
	}
	if ls.AllowedOrigins == nil {
		ls.AllowedOrigins = s.fallback
	}
	if err := logger.SetLevel(ls.LogLevel); err != nil {
		logger.Warn("nacos: bad log level, keep current", zap.String("level", ls.LogLevel), zap.Error(err))
		ls.LogLevel = prev.LogLevel
	}
	s.cur.Store(&ls)
	logger.Info("live settings applied", zap.String("log_level", ls.LogLevel), zap.Strings("origins", ls.AllowedOrigins))
}

// configSource is the part of config_client.IConfigClient the watcher uses.
type configSource interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
	CancelListenConfig(param vo.ConfigParam) error
}

// Watcher keeps Settings in sync with one nacos document.
type Watcher struct {
	src           configSource
	dataId, group string
	settings      *Settings
}

func NewWatcher(src configSource, dataId, group string, settings *Settings) *Watcher {
	if group == "" {
		group = "DEFAULT_GROUP"
	}
	return &Watcher{src: src, dataId: dataId, group: group, settings: settings}
}

// Start loads the document once and then listens for changes. A failed
// initial fetch is returned; later bad documents are logged and skipped.
func (w *Watcher) Start() error {
	content, err := w.src.GetConfig(vo.ConfigParam{DataId: w.dataId, Group: w.group})
	if err != nil {
		return errs.WrapMsg(err, "get nacos config", "dataId", w.dataId, "group", w.group)
	}
	w.update(content)

	err = w.src.ListenConfig(vo.ConfigParam{
		DataId: w.dataId,
		Group:  w.group,
		OnChange: func(namespace, group, dataId, data string) {
			logger.Info("nacos change", zap.String("namespace", namespace), zap.String("dataId", dataId))
			w.update(data)
		},
	})
	if err != nil {
		return errs.WrapMsg(err, "listen nacos config", "dataId", w.dataId)
	}
	return nil
}

func (w *Watcher) Stop() {
	_ = w.src.CancelListenConfig(vo.ConfigParam{DataId: w.dataId, Group: w.group})
}

func (w *Watcher) update(data string) {
	ls, err := ParseSettings(data)
	if err != nil {
		logger.Warn("nacos: drop bad document", zap.String("dataId", w.dataId), zap.Error(err))
		return
	}
	w.settings.Apply(ls)
}
