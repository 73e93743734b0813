package reldb

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PageSize and StringLength are the on-disk layout constants every
// heap page and tuple codec closes over. They default to 4096-byte
// pages and 128-byte string payloads and are only ever changed by
// EngineConfig.Apply, never mutated mid-run.
var (
	PageSize     = 4096
	StringLength = 128
)

// EngineConfig holds the numeric knobs the hard core needs: page
// layout, buffer pool capacity, the lock manager's timeout, and the
// I/O cost constant the selectivity estimator charges per page. It is
// intentionally silent on anything SQL/catalog/CLI shaped -- those
// stay the job of an external collaborator.
type EngineConfig struct {
	PageSize        int           `mapstructure:"page_size"`
	StringLength    int           `mapstructure:"string_length"`
	BufferPoolPages int           `mapstructure:"buffer_pool_pages"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	IOCostPerPage   float64       `mapstructure:"io_cost_per_page"`
}

// DefaultEngineConfig returns the configuration used when no file or
// environment override is present.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PageSize:        4096,
		StringLength:    128,
		BufferPoolPages: 100,
		LockTimeout:     1 * time.Second,
		IOCostPerPage:   1000.0,
	}
}

// LoadConfig reads an EngineConfig from an optional YAML file at path
// (empty skips the file) overlaid with RELDB_* environment variables,
// falling back to DefaultEngineConfig for anything unset.
func LoadConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	v := viper.New()
	v.SetEnvPrefix("RELDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("string_length", cfg.StringLength)
	v.SetDefault("buffer_pool_pages", cfg.BufferPoolPages)
	v.SetDefault("lock_timeout", cfg.LockTimeout)
	v.SetDefault("io_cost_per_page", cfg.IOCostPerPage)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, newError(IOError, "read engine config %s: %v", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, newError(IllegalArgumentError, "parse engine config: %v", err)
	}
	return cfg, nil
}

// Apply installs cfg's layout constants as the package-level PageSize
// and StringLength used by the tuple and heap-page codecs. Call this
// once, before any HeapFile is opened; changing it afterwards would
// invalidate every page already on disk.
func (c EngineConfig) Apply() {
	PageSize = c.PageSize
	StringLength = c.StringLength
}
