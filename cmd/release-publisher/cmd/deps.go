package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/cdn"
	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/secrets"
	"github.com/oshokin/release-publisher/internal/signing"
	"github.com/oshokin/release-publisher/internal/storage"
)

// app carries what every subcommand shares. Fields are replaced in tests.
type app struct {
	// configPath is the optional settings file.
	configPath string
	// logLevel is the --log-level flag value.
	logLevel string
	// logLevelSet is true when --log-level was given explicitly.
	logLevelSet bool

	// secrets is the store for keys and API credentials.
	secrets secrets.Store
	// stdin feeds `keys import -`.
	stdin io.Reader
	// interactive enables spinners and prompts.
	interactive bool
}

func newApp() *app {
	return &app{
		secrets:     secrets.NewKeyringStore(secrets.DefaultService),
		stdin:       os.Stdin,
		interactive: isTerminal(os.Stderr),
	}
}

func (a *app) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, apperr.Validation("load configuration", err)
	}

	if a.verbose(cfg) {
		logger.SetLevel(zapcore.DebugLevel)
	}

	logger.Debugf(ctx, "Loaded configuration, manifest at %s", cfg.UpdateManifestURL)

	return cfg, nil
}

// verbose reports whether the verbose setting decides the log level. An
// explicit --log-level always wins.
func (a *app) verbose(cfg *config.Config) bool {
	return cfg.Verbose && !a.logLevelSet
}

func (a *app) signer(cfg *config.Config) (*signing.Signer, error) {
	override := config.SigningKeyOverride()
	if cfg != nil {
		override = cfg.SigningPrivateKey
	}

	return signing.LoadSigner(a.secrets, override)
}

// secret resolves a credential from configuration first, then the keyring.
func (a *app) secret(override, key, hint string) (string, error) {
	value, err := secrets.Lookup(a.secrets, override, key)
	if errors.Is(err, secrets.ErrNotFound) {
		return "", apperr.Validation("load credentials", fmt.Errorf("%s is not configured: set %s or store %q in the keyring", key, hint, key))
	}

	if err != nil {
		return "", apperr.Validation("load credentials", err)
	}

	return value, nil
}

func (a *app) store(ctx context.Context, cfg *config.Config) (*storage.S3Store, error) {
	key, err := a.secret(cfg.B2APIKey, secrets.B2APIKey, "SM_B2_API_KEY")
	if err != nil {
		return nil, err
	}

	return storage.NewS3Store(ctx, storage.S3Options{
		Endpoint:        cfg.B2Endpoint,
		Region:          cfg.B2Region,
		Bucket:          cfg.B2BucketName,
		AccessKeyID:     cfg.B2APIID,
		SecretAccessKey: key,
		Timeout:         cfg.Timeout,
	})
}

func (a *app) purger(cfg *config.Config) (*cdn.CloudflarePurger, error) {
	token, err := a.secret(cfg.CFCachePurgeToken, secrets.CachePurgeToken, "SM_CF_CACHE_PURGE_TOKEN")
	if err != nil {
		return nil, err
	}

	return cdn.NewCloudflarePurger(cfg.CFZoneID, token)
}

func (a *app) manifests(cfg *config.Config) *manifest.HTTPRepository {
	return manifest.NewHTTPRepository(cfg.UpdateManifestURL, nil, cfg.Timeout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
