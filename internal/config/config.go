package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-publisher/internal/uris"
)

// Config holds the settings shared by every command. It is built once at
// process start and passed to the workflows explicitly.
type Config struct {
	// UpdateManifestURL is the public URL clients fetch the manifest from.
	// Defaults to CDNRoot joined with ManifestPath.
	UpdateManifestURL string `mapstructure:"update_manifest_url" yaml:"update_manifest_url"`
	// ManifestPath is the object key of the manifest in the bucket.
	ManifestPath string `mapstructure:"manifest_path" yaml:"manifest_path"`
	// CDNRoot is the public base URL of the bucket.
	CDNRoot string `mapstructure:"cdn_root" yaml:"cdn_root"`
	// B2APIID is the storage application key id.
	B2APIID string `mapstructure:"b2_api_id" yaml:"b2_api_id"`
	// B2APIKey is the storage application key. Prefer the keyring.
	B2APIKey string `mapstructure:"b2_api_key" yaml:"b2_api_key,omitempty"`
	// B2BucketName is the bucket that hosts the manifest and artifacts.
	B2BucketName string `mapstructure:"b2_bucket_name" yaml:"b2_bucket_name"`
	// B2Endpoint is the S3-compatible endpoint of the bucket region.
	B2Endpoint string `mapstructure:"b2_endpoint" yaml:"b2_endpoint"`
	// B2Region is the region used for request signing.
	B2Region string `mapstructure:"b2_region" yaml:"b2_region"`
	// CFZoneID is the Cloudflare zone fronting the bucket.
	CFZoneID string `mapstructure:"cf_zone_id" yaml:"cf_zone_id"`
	// CFCachePurgeToken is the Cloudflare API token. Prefer the keyring.
	CFCachePurgeToken string `mapstructure:"cf_cache_purge_token" yaml:"cf_cache_purge_token,omitempty"`
	// SigningPrivateKey overrides the keyring signing key (OpenSSH PEM).
	SigningPrivateKey string `mapstructure:"signing_private_key" yaml:"-"`
	// Timeout bounds every network call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// LockFile guards against two local publishes at once.
	LockFile string `mapstructure:"lock_file" yaml:"lock_file"`
	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the working directory.
	DefaultConfigFilename = "release-publisher.yaml"

	// EnvPrefix prefixes every environment override, e.g. SM_CDN_ROOT.
	EnvPrefix = "SM"

	// DefaultManifestPath is the manifest object key.
	DefaultManifestPath = "update.json"

	// DefaultRegion is used when the bucket region is not set.
	DefaultRegion = "us-west-004"

	// DefaultTimeout bounds network calls when not configured.
	DefaultTimeout = 30 * time.Second

	// DefaultLockFilename is the name of the local publish marker.
	DefaultLockFilename = "release-publisher.lock"

	// appDirName is the per-user cache directory of the tool.
	appDirName = "release-publisher"

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errCDNRootRequired is returned when the public base URL is missing.
	errCDNRootRequired = errors.New("cdn_root must be provided (SM_CDN_ROOT)")
)

//nolint:gochecknoglobals // Keys known to viper so AutomaticEnv reaches Unmarshal.
var settingDefaults = map[string]any{
	"update_manifest_url":  "",
	"manifest_path":        DefaultManifestPath,
	"cdn_root":             "",
	"b2_api_id":            "",
	"b2_api_key":           "",
	"b2_bucket_name":       "",
	"b2_endpoint":          "",
	"b2_region":            DefaultRegion,
	"cf_zone_id":           "",
	"cf_cache_purge_token": "",
	"signing_private_key":  "",
	"timeout":              DefaultTimeout,
	"lock_file":            DefaultLockFile(),
	"verbose":              false,
}

// Load builds the configuration from defaults, the optional YAML file at
// path and SM_* environment variables, in increasing precedence. A missing
// file is only an error when path is not the default one.
func Load(path string) (*Config, error) {
	v := viper.New()

	for key, value := range settingDefaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path as YAML. Secrets tagged out of the
// YAML form are never written.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks URL fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.CDNRoot == "" {
		return errCDNRootRequired
	}

	if _, err := url.ParseRequestURI(cfg.CDNRoot); err != nil {
		return fmt.Errorf("invalid cdn_root: %w", err)
	}

	if cfg.ManifestPath == "" {
		cfg.ManifestPath = DefaultManifestPath
	}

	if cfg.UpdateManifestURL == "" {
		cfg.UpdateManifestURL = uris.Join(cfg.CDNRoot, cfg.ManifestPath)
	}

	if _, err := url.ParseRequestURI(cfg.UpdateManifestURL); err != nil {
		return fmt.Errorf("invalid update_manifest_url: %w", err)
	}

	if cfg.B2Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.B2Endpoint); err != nil {
			return fmt.Errorf("invalid b2_endpoint: %w", err)
		}
	}

	if cfg.B2Region == "" {
		cfg.B2Region = DefaultRegion
	}

	// Set default timeout if not specified.
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFile()
	}

	return nil
}

// DefaultLockFile returns the marker path shared by every publish of the
// current user, so runs from different directories see each other.
func DefaultLockFile() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}

	return filepath.Join(dir, appDirName, DefaultLockFilename)
}

// PublicURL returns the CDN URL of an object key.
func (c *Config) PublicURL(objectKey string) string {
	return uris.Join(c.CDNRoot, objectKey)
}

func readFile(v *viper.Viper, path string) error {
	explicit := path != "" && path != DefaultConfigFilename
	if path == "" {
		path = DefaultConfigFilename
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}

		return fmt.Errorf("read settings: %w", err)
	}

	v.SetConfigFile(filepath.Clean(path))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	return nil
}

// SigningKeyOverride returns the signing key set through the environment,
// for commands that run without a full configuration.
func SigningKeyOverride() string {
	return os.Getenv(EnvPrefix + "_SIGNING_PRIVATE_KEY")
}
