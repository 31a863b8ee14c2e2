package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/spf13/viper"
)

// DBCrossbarConfig is the on-disk shape of $DBCROSSBAR_CONFIG_DIR/dbcrossbar.toml:
// a stored list of scratch locator prefixes, maintained by the
// `config` command. The `cp` command does not read it.
type DBCrossbarConfig struct {
	Temporary []string `toml:"temporary"`
}

// ConfigDir returns $DBCROSSBAR_CONFIG_DIR, or the platform default
// user-config directory under a "dbcrossbar" subdirectory when unset,
// mirroring the CLI's use of viper for environment overrides
// elsewhere in this package.
func ConfigDir() (string, error) {
	v := viper.New()
	v.SetEnvPrefix("dbcrossbar")
	_ = v.BindEnv("config_dir")
	if dir := v.GetString("config_dir"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", dbcerrors.Wrap(err, dbcerrors.KindIO, "resolving default config directory")
	}
	return filepath.Join(base, "dbcrossbar"), nil
}

// ConfigPath returns the dbcrossbar.toml path under dir.
func ConfigPath(dir string) string { return filepath.Join(dir, "dbcrossbar.toml") }

// LoadDBCrossbarConfig reads dbcrossbar.toml from dir, returning a
// zero-value config (not an error) if the file doesn't exist yet.
func LoadDBCrossbarConfig(dir string) (*DBCrossbarConfig, error) {
	path := ConfigPath(dir)
	var cfg DBCrossbarConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, dbcerrors.Wrapf(err, dbcerrors.KindParse, "parsing %s", path)
	}
	return &cfg, nil
}

// Save writes cfg to dir/dbcrossbar.toml, creating dir if needed.
func (cfg *DBCrossbarConfig) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dbcerrors.Wrapf(err, dbcerrors.KindIO, "creating %s", dir)
	}
	f, err := os.Create(ConfigPath(dir))
	if err != nil {
		return dbcerrors.Wrapf(err, dbcerrors.KindIO, "writing %s", ConfigPath(dir))
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// AddTemporary appends prefix if it isn't already present, for the
// `config add` command.
func (cfg *DBCrossbarConfig) AddTemporary(prefix string) {
	for _, existing := range cfg.Temporary {
		if existing == prefix {
			return
		}
	}
	cfg.Temporary = append(cfg.Temporary, prefix)
}

// RemoveTemporary removes prefix, for the `config rm` command. It
// reports whether prefix was present.
func (cfg *DBCrossbarConfig) RemoveTemporary(prefix string) bool {
	for i, existing := range cfg.Temporary {
		if existing == prefix {
			cfg.Temporary = append(cfg.Temporary[:i], cfg.Temporary[i+1:]...)
			return true
		}
	}
	return false
}
