package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"wisefido-vitalsync/common/config"

	"gopkg.in/yaml.v3"
)

// ECGRefreshMode ECG 波形的拉取时机
type ECGRefreshMode string

const (
	// ECGRefreshOnce 只拉取一次
	ECGRefreshOnce ECGRefreshMode = "once"
	// ECGRefreshOnSelect 启动时及每次切换患者时拉取
	ECGRefreshOnSelect ECGRefreshMode = "select"
	// ECGRefreshEveryCycle 每个刷新周期都拉取
	ECGRefreshEveryCycle ECGRefreshMode = "cycle"
)

// Valid 是否为已知模式
func (m ECGRefreshMode) Valid() bool {
	switch m {
	case ECGRefreshOnce, ECGRefreshOnSelect, ECGRefreshEveryCycle:
		return true
	}
	return false
}

// Config wisefido-vitalsync 服务配置
type Config struct {
	Redis config.RedisConfig `yaml:"redis"`
	MQTT  config.MQTTConfig  `yaml:"mqtt"`

	Sync struct {
		APIBase               string         `yaml:"api_base"`          // 后端地址，如 http://localhost:8000
		RefreshInterval       time.Duration  `yaml:"refresh_interval"`  // 定时刷新间隔
		HistoryLimit          int            `yaml:"history_limit"`     // 每次拉取的历史条数
		ECGRefreshMode        ECGRefreshMode `yaml:"ecg_refresh_mode"`  // once | select | cycle
		HTTPTimeout           time.Duration  `yaml:"http_timeout"`      // 单次请求超时
		HTTPRetries           int            `yaml:"http_retries"`      // 传输错误重试次数
		ManualRefreshInterval time.Duration  `yaml:"manual_refresh"`    // 手动/推送刷新的最小间隔
		LabelTimezone         string         `yaml:"label_timezone"`    // 图表标签时区（IANA），空为本地
	} `yaml:"sync"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Mirror struct {
		Enabled   bool          `yaml:"enabled"`
		KeyPrefix string        `yaml:"key_prefix"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"mirror"`

	Nudge struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"nudge"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// Load 加载配置：默认值 -> VITALSYNC_CONFIG 指定的 YAML 文件（可选）-> 环境变量
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Sync.APIBase = "http://localhost:8000"
	cfg.Sync.RefreshInterval = 5 * time.Second
	cfg.Sync.HistoryLimit = 120
	cfg.Sync.ECGRefreshMode = ECGRefreshOnSelect
	cfg.Sync.HTTPTimeout = 10 * time.Second
	cfg.Sync.HTTPRetries = 1
	cfg.Sync.ManualRefreshInterval = time.Second

	cfg.HTTP.Addr = ":8090"

	cfg.Redis.Addr = "localhost:6379"
	cfg.Mirror.KeyPrefix = "vital-sync:patient:"
	cfg.Mirror.TTL = 30 * time.Second

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-vitalsync"
	cfg.MQTT.Topics = []string{"patient/vitals", "patient/ecg_stream"}

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	if path := os.Getenv("VITALSYNC_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	var err error
	cfg.Sync.APIBase = getEnv("VITALSYNC_API_BASE", cfg.Sync.APIBase)
	if cfg.Sync.RefreshInterval, err = getDuration("VITALSYNC_REFRESH_INTERVAL", cfg.Sync.RefreshInterval); err != nil {
		return nil, err
	}
	if cfg.Sync.HistoryLimit, err = getInt("VITALSYNC_HISTORY_LIMIT", cfg.Sync.HistoryLimit); err != nil {
		return nil, err
	}
	cfg.Sync.ECGRefreshMode = ECGRefreshMode(getEnv("ECG_REFRESH_MODE", string(cfg.Sync.ECGRefreshMode)))
	if cfg.Sync.HTTPTimeout, err = getDuration("VITALSYNC_HTTP_TIMEOUT", cfg.Sync.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.Sync.HTTPRetries, err = getInt("VITALSYNC_HTTP_RETRIES", cfg.Sync.HTTPRetries); err != nil {
		return nil, err
	}
	if cfg.Sync.ManualRefreshInterval, err = getDuration("VITALSYNC_MANUAL_REFRESH_RATE", cfg.Sync.ManualRefreshInterval); err != nil {
		return nil, err
	}
	cfg.Sync.LabelTimezone = getEnv("VITALSYNC_LABEL_TZ", cfg.Sync.LabelTimezone)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Redis.LoadFromEnv("REDIS")
	cfg.Mirror.Enabled = getBool("MIRROR_ENABLED", cfg.Mirror.Enabled)
	cfg.Mirror.KeyPrefix = getEnv("MIRROR_KEY_PREFIX", cfg.Mirror.KeyPrefix)
	if cfg.Mirror.TTL, err = getDuration("MIRROR_TTL", cfg.Mirror.TTL); err != nil {
		return nil, err
	}

	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.Nudge.Enabled = getBool("MQTT_ENABLED", cfg.Nudge.Enabled)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	u, err := url.Parse(c.Sync.APIBase)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base %q: must be an absolute http(s) URL", c.Sync.APIBase)
	}
	if c.Sync.RefreshInterval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if c.Sync.HistoryLimit <= 0 {
		return errors.New("history limit must be positive")
	}
	if !c.Sync.ECGRefreshMode.Valid() {
		return fmt.Errorf("invalid ECG refresh mode %q (want once, select or cycle)", c.Sync.ECGRefreshMode)
	}
	if c.Sync.HTTPRetries < 0 {
		return errors.New("http retries must not be negative")
	}
	if c.Sync.LabelTimezone != "" {
		if _, err := time.LoadLocation(c.Sync.LabelTimezone); err != nil {
			return fmt.Errorf("invalid label timezone %q: %w", c.Sync.LabelTimezone, err)
		}
	}
	if c.Mirror.Enabled && c.Mirror.TTL <= 0 {
		return errors.New("mirror ttl must be positive when the mirror is enabled")
	}
	if c.Nudge.Enabled && len(c.MQTT.Topics) == 0 {
		return errors.New("at least one MQTT topic is required when the nudge is enabled")
	}
	return nil
}

// LabelLocation 图表标签使用的时区
func (c *Config) LabelLocation() *time.Location {
	if c.Sync.LabelTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Sync.LabelTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
