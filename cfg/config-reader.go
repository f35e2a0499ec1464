package cfg

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DEFAULT_BUFFER_SIZE      = 5 * 1024 * 1024
	DEFAULT_BUFFER_SIZE_NAME = "5MB"
	MAX_BUFFER_SIZE          = 1024 * 1024 * 1024
	DEFAULT_JOB_RETENTION    = 7 * 24 * time.Hour

	envPrefix = "NXRM"
)

// ReadInitConfig reads the config file at filePath, if any, and applies NXRM_* environment overrides.
func ReadInitConfig(filePath string) (*StartupConfig, error) {
	v := viper.New()
	v.SetDefault("port", ":8080")
	v.SetDefault("server_id", "nexus")
	v.SetDefault("buffer_size", DEFAULT_BUFFER_SIZE_NAME)
	v.SetDefault("retry_max", 3)
	v.SetDefault("job_retention", DEFAULT_JOB_RETENTION.String())
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for _, key := range []string{
		"nexus_url", "username", "password", "staging_directory", "index_filename",
		"user_agent", "insecure_skip_verify", "client_cert_file", "client_key_file", "ca_cert_file",
		"proxy.host", "proxy.port", "proxy.username", "proxy.password", "proxy.no_proxy_hosts",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "failed to bind environment for %s", key)
		}
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", filePath)
		}
	}

	var startupConfig StartupConfig
	if err := v.Unmarshal(&startupConfig); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	return &startupConfig, nil
}

type StartupConfig struct {
	StartupPort string `mapstructure:"port" json:"port"`
	NexusUrl    string `mapstructure:"nexus_url" json:"nexus_url"`
	ServerId    string `mapstructure:"server_id" json:"server_id"`
	// Username and Password register credentials for ServerId without a servers list.
	Username string         `mapstructure:"username" json:"username,omitempty"`
	Password string         `mapstructure:"password" json:"password,omitempty"`
	Servers  []ServerConfig `mapstructure:"servers" json:"servers,omitempty"`

	Proxy              ProxyConfig `mapstructure:"proxy" json:"proxy"`
	InsecureSkipVerify bool        `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify"`
	ClientCertFile     string      `mapstructure:"client_cert_file" json:"client_cert_file,omitempty"`
	ClientKeyFile      string      `mapstructure:"client_key_file" json:"client_key_file,omitempty"`
	CACertFile         string      `mapstructure:"ca_cert_file" json:"ca_cert_file,omitempty"`
	UserAgent          string      `mapstructure:"user_agent" json:"user_agent,omitempty"`
	RetryMax           int         `mapstructure:"retry_max" json:"retry_max"`

	BufferSize       string `mapstructure:"buffer_size" json:"buffer_size"`
	StagingDirectory string `mapstructure:"staging_directory" json:"staging_directory,omitempty"`
	IndexFilename    string `mapstructure:"index_filename" json:"index_filename,omitempty"`
	JobRetention     string `mapstructure:"job_retention" json:"job_retention"`

	Logger LoggerConfig `mapstructure:"logger" json:"logger"`
}

type ServerConfig struct {
	Id       string `mapstructure:"id" json:"id"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
}

type ProxyConfig struct {
	Host         string   `mapstructure:"host" json:"host,omitempty"`
	Port         int      `mapstructure:"port" json:"port,omitempty"`
	Username     string   `mapstructure:"username" json:"username,omitempty"`
	Password     string   `mapstructure:"password" json:"password,omitempty"`
	NoProxyHosts []string `mapstructure:"no_proxy_hosts" json:"no_proxy_hosts,omitempty"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// RefineConfig validates the config and normalizes it in place.
func (cfg *StartupConfig) RefineConfig() error {
	if !strings.HasPrefix(cfg.StartupPort, ":") {
		return errors.New("startup port must start with ':', e.g. ':8080'")
	}
	_, defaultValue := cfg.GetBufferSize()
	if defaultValue {
		cfg.BufferSize = DEFAULT_BUFFER_SIZE_NAME
	}
	cfg.BufferSize = strings.ToUpper(cfg.BufferSize)

	cfg.NexusUrl = strings.TrimSuffix(strings.TrimSpace(cfg.NexusUrl), "/")

	if cfg.Username != "" && cfg.findServer(cfg.ServerId) == nil {
		cfg.Servers = append(cfg.Servers, ServerConfig{Id: cfg.ServerId, Username: cfg.Username, Password: cfg.Password})
	}
	for _, server := range cfg.Servers {
		if server.Id == "" {
			return errors.New("every entry of `servers` needs an `id`")
		}
		if strings.Contains(server.Password, "#") {
			log.Warnf("password of server `%s` contains '#' symbol. It is better to be escaped with `%%23`.", server.Id)
		}
	}

	if (cfg.ClientCertFile == "") != (cfg.ClientKeyFile == "") {
		return errors.New("config keys `client_cert_file` and `client_key_file` must be set together")
	}
	if cfg.Proxy.Host != "" && cfg.Proxy.Port <= 0 {
		return errors.New("config key `proxy.port` must be set when `proxy.host` is set")
	}
	if cfg.RetryMax < 0 {
		return errors.New("config key `retry_max` must not be negative")
	}
	if _, err := cfg.GetJobRetention(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(cfg.Logger.Level); err != nil {
		return errors.Wrap(err, "config key `logger.level` is invalid")
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		return errors.Errorf("config key `logger.format` must be `text` or `json`, got `%s`", cfg.Logger.Format)
	}
	return nil
}

func (cfg *StartupConfig) findServer(id string) *ServerConfig {
	for i := range cfg.Servers {
		if cfg.Servers[i].Id == id {
			return &cfg.Servers[i]
		}
	}
	return nil
}

// Masked returns a copy safe to show to clients: every password is replaced.
func (cfg StartupConfig) Masked() StartupConfig {
	const mask = "******"
	masked := cfg
	masked.Servers = make([]ServerConfig, len(cfg.Servers))
	for i, server := range cfg.Servers {
		if server.Password != "" {
			server.Password = mask
		}
		masked.Servers[i] = server
	}
	if masked.Password != "" {
		masked.Password = mask
	}
	if masked.Proxy.Password != "" {
		masked.Proxy.Password = mask
	}
	return masked
}

func (cfg *StartupConfig) GetJobRetention() (time.Duration, error) {
	if cfg.JobRetention == "" {
		return DEFAULT_JOB_RETENTION, nil
	}
	retention, err := time.ParseDuration(cfg.JobRetention)
	if err != nil {
		return 0, errors.Wrap(err, "config key `job_retention` is invalid")
	}
	if retention <= 0 {
		return 0, errors.New("config key `job_retention` must be positive")
	}
	return retention, nil
}

var (
	kbRegex = regexp.MustCompile(`^(\d+)KB$`)
	mbRegex = regexp.MustCompile(`^(\d+)MB$`)
)

func (cfg *StartupConfig) GetBufferSize() (retVal int, defaultValue bool) {
	bufferSizeStr := strings.ToUpper(strings.TrimSpace(cfg.BufferSize))
	units := []struct {
		regex      *regexp.Regexp
		multiplier int
	}{
		{kbRegex, 1024},
		{mbRegex, 1024 * 1024},
	}
	for _, unit := range units {
		subMatches := unit.regex.FindStringSubmatch(bufferSizeStr)
		if len(subMatches) == 0 {
			continue
		}
		amount, err := strconv.Atoi(subMatches[1])
		if err != nil || amount > MAX_BUFFER_SIZE/unit.multiplier {
			log.Warnf("buffer_size %s exceeds the maximum of %d bytes", cfg.BufferSize, MAX_BUFFER_SIZE)
			break
		}
		if bufferSize := unit.multiplier * amount; bufferSize > 0 {
			log.Debugf("Setting BufferSize to %d bytes", bufferSize)
			return bufferSize, false
		}
		break
	}
	log.Debugf("Setting BufferSize to default value of %d bytes", DEFAULT_BUFFER_SIZE)
	return DEFAULT_BUFFER_SIZE, true
}
