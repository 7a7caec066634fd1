package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	StateJSON   = "json"
	StateSQLite = "sqlite"

	ContentLocal = "local"
	ContentS3    = "s3"
	ContentGCS   = "gcs"
	ContentSFTP  = "sftp"
)

type Config struct {
	Port            int
	APIToken        string
	MaxUploadSizeMB int
	LogLevel        string

	DataDir      string
	UploadDir    string
	ConvertedDir string
	StateBackend string

	TransformCommand string
	TransformArgs    string
	TransformLogFile string
	TerminateGrace   time.Duration
	PollInterval     time.Duration
	MaxStorageBytes  int64
	DownloadLinkTTL  time.Duration

	ContentBackend string
	S3             S3Config
	GCS            GCSConfig
	SFTP           SFTPConfig
}

type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type GCSConfig struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	SignerEmail     string
	SignerKeyFile   string
}

type SFTPConfig struct {
	Addr           string
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string
	Dir            string
}

// Remote reports whether completed outputs are pushed off the machine.
func (c *Config) Remote() bool {
	return c.ContentBackend != "" && c.ContentBackend != ContentLocal
}

// Load reads configuration from the environment. When TRANSQ_CONFIG names a
// TOML file its keys (lower-case env names, e.g. data_dir) fill in anything the
// environment leaves unset.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("TRANSQ_CONFIG"))
}

// LoadFile is Load with an explicit config file; an empty path means
// environment only.
func LoadFile(path string) (*Config, error) {
	src, err := newSource(path)
	if err != nil {
		return nil, err
	}
	return load(src)
}

func load(src *source) (*Config, error) {
	port, err := src.int("PORT", 7890)
	if err != nil {
		return nil, err
	}
	maxUploadSizeMB, err := src.int("MAX_UPLOAD_SIZE_MB", 1024)
	if err != nil {
		return nil, err
	}
	pollMS, err := src.int("POLL_INTERVAL_MS", 500)
	if err != nil {
		return nil, err
	}
	graceSec, err := src.int("TERMINATE_GRACE_SEC", 3)
	if err != nil {
		return nil, err
	}
	maxStorageGB, err := src.float("MAX_STORAGE_GB", 20)
	if err != nil {
		return nil, err
	}
	linkTTLMin, err := src.int("DOWNLOAD_LINK_TTL_MIN", 15)
	if err != nil {
		return nil, err
	}

	dataDir := src.get("DATA_DIR", "/data")

	cfg := &Config{
		Port:             port,
		APIToken:         src.get("API_TOKEN", ""),
		MaxUploadSizeMB:  maxUploadSizeMB,
		LogLevel:         strings.ToLower(src.get("LOG_LEVEL", "info")),
		DataDir:          dataDir,
		UploadDir:        src.get("UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
		ConvertedDir:     src.get("CONVERTED_DIR", filepath.Join(dataDir, "converted")),
		StateBackend:     strings.ToLower(src.get("STATE_BACKEND", StateJSON)),
		TransformCommand: src.get("TRANSFORM_COMMAND", "iw3"),
		TransformArgs:    src.get("TRANSFORM_ARGS", ""),
		TransformLogFile: src.get("TRANSFORM_LOG_FILE", filepath.Join(dataDir, "transform.log")),
		TerminateGrace:   time.Duration(graceSec) * time.Second,
		PollInterval:     time.Duration(pollMS) * time.Millisecond,
		MaxStorageBytes:  int64(maxStorageGB * 1024 * 1024 * 1024),
		DownloadLinkTTL:  time.Duration(linkTTLMin) * time.Minute,
		ContentBackend:   strings.ToLower(src.get("CONTENT_BACKEND", ContentLocal)),
		S3: S3Config{
			Bucket:    src.get("S3_BUCKET", ""),
			Prefix:    src.get("S3_PREFIX", ""),
			Region:    src.get("S3_REGION", "us-east-1"),
			Endpoint:  src.get("S3_ENDPOINT", ""),
			AccessKey: src.get("S3_ACCESS_KEY", ""),
			SecretKey: src.get("S3_SECRET_KEY", ""),
		},
		GCS: GCSConfig{
			Bucket:          src.get("GCS_BUCKET", ""),
			Prefix:          src.get("GCS_PREFIX", ""),
			CredentialsFile: src.get("GCS_CREDENTIALS_FILE", ""),
			SignerEmail:     src.get("GCS_SIGNER_EMAIL", ""),
			SignerKeyFile:   src.get("GCS_SIGNER_KEY_FILE", ""),
		},
		SFTP: SFTPConfig{
			Addr:           src.get("SFTP_ADDR", ""),
			User:           src.get("SFTP_USER", ""),
			Password:       src.get("SFTP_PASSWORD", ""),
			KeyFile:        src.get("SFTP_KEY_FILE", ""),
			KnownHostsFile: src.get("SFTP_KNOWN_HOSTS_FILE", ""),
			Dir:            src.get("SFTP_DIR", "."),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StateBackend {
	case StateJSON, StateSQLite:
	default:
		return fmt.Errorf("invalid STATE_BACKEND %q: want json or sqlite", c.StateBackend)
	}

	switch c.ContentBackend {
	case ContentLocal:
	case ContentS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 content backend")
		}
	case ContentGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs content backend")
		}
	case ContentSFTP:
		if c.SFTP.Addr == "" || c.SFTP.User == "" {
			return fmt.Errorf("SFTP_ADDR and SFTP_USER are required for the sftp content backend")
		}
		if c.SFTP.Password == "" && c.SFTP.KeyFile == "" {
			return fmt.Errorf("SFTP_PASSWORD or SFTP_KEY_FILE is required for the sftp content backend")
		}
	default:
		return fmt.Errorf("invalid CONTENT_BACKEND %q", c.ContentBackend)
	}

	if c.TransformCommand == "" {
		return fmt.Errorf("TRANSFORM_COMMAND is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.TerminateGrace < 0 {
		return fmt.Errorf("TERMINATE_GRACE_SEC must not be negative")
	}
	if c.DownloadLinkTTL <= 0 {
		return fmt.Errorf("DOWNLOAD_LINK_TTL_MIN must be positive")
	}
	return nil
}

type source struct {
	file map[string]any
}

func newSource(path string) (*source, error) {
	src := &source{file: map[string]any{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &src.file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return src, nil
}

func (s *source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[strings.ToLower(key)]; ok {
		return fmt.Sprint(value)
	}
	return defaultValue
}

func (s *source) int(key string, defaultValue int) (int, error) {
	n, err := strconv.Atoi(s.get(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func (s *source) float(key string, defaultValue float64) (float64, error) {
	f, err := strconv.ParseFloat(s.get(key, strconv.FormatFloat(defaultValue, 'f', -1, 64)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
