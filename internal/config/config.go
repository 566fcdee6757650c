package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	return InitializeFrom("")
}

// InitializeFrom is Initialize with an explicit config file (the --config
// flag). The file must exist; the usual search paths are skipped.
func InitializeFrom(explicit string) error {
	v = viper.New()

	// Set config type to yaml (we only load config.yaml)
	v.SetConfigType("yaml")

	// Explicitly locate config.yaml and use SetConfigFile.
	// Precedence: --config > project .shopmirror/config.yaml > ~/.config/shopmirror/config.yaml > ~/.shopmirror/config.yaml
	configFileSet := false

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return fmt.Errorf("config file %s: %w", explicit, err)
		}
		v.SetConfigFile(explicit)
		configFileSet = true
	}

	// 1. Walk up from CWD to find project .shopmirror/config.yaml
	//    This allows commands to work from subdirectories
	cwd, err := os.Getwd()
	if err == nil && !configFileSet {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".shopmirror", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/shopmirror/config.yaml)
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "shopmirror", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.shopmirror/config.yaml)
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".shopmirror", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// Automatic environment variable binding
	// Environment variables take precedence over config file
	// E.g., SHOPMIRROR_LOG_LEVEL, SHOPMIRROR_CONCURRENCY
	v.SetEnvPrefix("SHOPMIRROR")

	// Replace hyphens and dots with underscores for env var mapping
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Tenant credentials and API settings use unprefixed variables; these
	// are the names operators already export for other storefront tooling.
	_ = v.BindEnv("src.shop-domain", "SRC_SHOP_DOMAIN")
	_ = v.BindEnv("src.admin-token", "SRC_ADMIN_TOKEN")
	_ = v.BindEnv("dst.shop-domain", "DST_SHOP_DOMAIN")
	_ = v.BindEnv("dst.admin-token", "DST_ADMIN_TOKEN")
	_ = v.BindEnv("api-version", "SHOPIFY_API_VERSION")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")
	_ = v.BindEnv("log.file", "LOG_FILE")

	v.SetDefault("api-version", "2025-10")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "pretty")
	v.SetDefault("log.file", "")
	v.SetDefault("dump-dir", "dump")
	v.SetDefault("concurrency", 4)
	v.SetDefault("lock-timeout", "30s")

	// Read config file if it was found
	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// Shop is one tenant's connection settings.
type Shop struct {
	Domain string
	Token  string
}

// Source returns the export-side tenant, validated.
func Source() (Shop, error) {
	return shop("src", "SRC_SHOP_DOMAIN", "SRC_ADMIN_TOKEN")
}

// Destination returns the import-side tenant, validated.
func Destination() (Shop, error) {
	return shop("dst", "DST_SHOP_DOMAIN", "DST_ADMIN_TOKEN")
}

func shop(prefix, domainVar, tokenVar string) (Shop, error) {
	s := Shop{
		Domain: NormalizeDomain(GetString(prefix + ".shop-domain")),
		Token:  GetString(prefix + ".admin-token"),
	}
	if s.Domain == "" {
		return Shop{}, fmt.Errorf("missing shop domain: set %s or %s.shop-domain in config.yaml", domainVar, prefix)
	}
	if s.Token == "" {
		return Shop{}, fmt.Errorf("missing admin token: set %s or %s.admin-token in config.yaml", tokenVar, prefix)
	}
	return s, nil
}

// NormalizeDomain strips scheme and path from a shop domain so both
// "my-shop.myshopify.com" and "https://my-shop.myshopify.com/" work.
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return d
}

// APIVersion returns the pinned admin API version.
func APIVersion() string {
	return GetString("api-version")
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
