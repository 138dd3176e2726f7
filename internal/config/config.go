// Package config handles configuration loading for the SBD receiver.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like database credentials to be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTP intake settings (port, TLS, base path, body limit)
//   - receiver: receiver check switch and this access point's identity
//   - directory: SMP location, either a fixed URL or BDXL
//   - handlers: ordered list of handlers documents are dispatched to
//   - storage: document archive, MongoDB or in memory (used by the archive handler)
//   - observability: Prometheus metrics endpoint
//   - logging: log level and format
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  basePath: /as2
//
//	receiver:
//	  checkEnabled: true
//	  endpointURL: https://ap.example.com/as2
//	  certificateFile: /etc/as2/ap.crt
//
//	directory:
//	  bdxl:
//	    domain: edelivery.tech.ec.europa.eu
//	    environment: acceptance
//
//	handlers:
//	  - type: log
//	  - type: archive
//
//	storage:
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: as2sbd
//
// See [Load] for loading configuration from a file.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-as2sbd/pkg/discovery"
)

var validate = newValidator()

// newValidator reports fields by their YAML names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler types
const (
	HandlerLog     = "log"
	HandlerArchive = "archive"
)

// Storage backends
const (
	StorageMongoDB = "mongodb"
	StorageMemory  = "memory"
)

// Config is the root configuration structure
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Receiver      ReceiverConfig      `yaml:"receiver"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Handlers      []HandlerConfig     `yaml:"handlers" validate:"dive"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	BasePath     string        `yaml:"basePath" validate:"startswith=/"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes" validate:"min=1"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	AdminToken   string        `yaml:"adminToken"` // enables the admin API with bearer auth
	TLS          struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile" validate:"required_if=Enabled true"`
		KeyFile  string `yaml:"keyFile" validate:"required_if=Enabled true"`
	} `yaml:"tls"`
}

// ReceiverConfig holds the receiver check settings and the node identity
type ReceiverConfig struct {
	// CheckEnabled turns on verification of inbound documents against the
	// directory. Off by default.
	CheckEnabled     bool   `yaml:"checkEnabled"`
	EndpointURL      string `yaml:"endpointURL" validate:"omitempty,url"`
	CertificateFile  string `yaml:"certificateFile"`
	TransportProfile string `yaml:"transportProfile" validate:"oneof=busdox-transport-as2-ver1p0 busdox-transport-as2-ver2p0"`
}

// DirectoryConfig holds SMP lookup settings
type DirectoryConfig struct {
	// SMPURL is a fixed SMP base URL; takes precedence over BDXL
	SMPURL string `yaml:"smpURL" validate:"omitempty,url"`
	BDXL   struct {
		Domain      string `yaml:"domain" validate:"omitempty,fqdn"`
		Environment string `yaml:"environment" validate:"omitempty,oneof=production acceptance test"`
		DNSServer   string `yaml:"dnsServer" validate:"omitempty,hostname_port"`
	} `yaml:"bdxl"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
	CAFile    string        `yaml:"caFile"` // PEM roots for SMP TLS, system pool when empty
}

// Configured reports whether an SMP location is set
func (d DirectoryConfig) Configured() bool {
	return d.SMPURL != "" || d.BDXL.Domain != ""
}

// HandlerConfig configures one entry of the handler list
type HandlerConfig struct {
	Type string `yaml:"type" validate:"required,oneof=log archive"`
	// Level is the log level for the log handler
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	// Type selects the archive backend: mongodb or memory
	Type    string        `yaml:"type" validate:"oneof=mongodb memory"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
	GridFS     struct {
		BucketName     string `yaml:"bucketName"`
		ChunkSizeBytes int32  `yaml:"chunkSizeBytes" validate:"min=0"`
	} `yaml:"gridfs"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" validate:"startswith=/"`
	} `yaml:"metrics"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration, expanding environment variables and
// applying defaults before validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// HasHandler reports whether a handler of the given type is configured
func (c *Config) HasHandler(handlerType string) bool {
	for _, h := range c.Handlers {
		if h.Type == handlerType {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/as2"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 50 << 20
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Receiver.TransportProfile == "" {
		c.Receiver.TransportProfile = discovery.TransportAS2V1
	}
	if c.Directory.Timeout == 0 {
		c.Directory.Timeout = 30 * time.Second
	}
	if c.Directory.BDXL.Environment == "" {
		c.Directory.BDXL.Environment = string(discovery.EnvProduction)
	}
	if len(c.Handlers) == 0 {
		c.Handlers = []HandlerConfig{{Type: HandlerLog}}
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageMongoDB
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "as2sbd"
	}
	if c.Storage.MongoDB.Collection == "" {
		c.Storage.MongoDB.Collection = "documents"
	}
	if c.Storage.MongoDB.Timeout == 0 {
		c.Storage.MongoDB.Timeout = 10 * time.Second
	}
	if c.Storage.MongoDB.GridFS.BucketName == "" {
		c.Storage.MongoDB.GridFS.BucketName = "envelopes"
	}
	if c.Storage.MongoDB.GridFS.ChunkSizeBytes == 0 {
		c.Storage.MongoDB.GridFS.ChunkSizeBytes = 261120 // 255KB
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		}
		return err
	}

	if c.Receiver.CheckEnabled {
		if c.Receiver.EndpointURL == "" {
			return fmt.Errorf("receiver.endpointURL is required when receiver.checkEnabled is true")
		}
		if c.Receiver.CertificateFile == "" {
			return fmt.Errorf("receiver.certificateFile is required when receiver.checkEnabled is true")
		}
	}

	if c.Receiver.CheckEnabled && !c.Directory.Configured() {
		return fmt.Errorf("directory.smpURL or directory.bdxl.domain is required when receiver.checkEnabled is true")
	}

	if c.HasHandler(HandlerArchive) && c.Storage.Type == StorageMongoDB && c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("storage.mongodb.uri is required by the archive handler")
	}

	return nil
}
