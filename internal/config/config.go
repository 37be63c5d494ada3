package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Inventory InventoryConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled         bool
	RedisURL        string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	StockTTLSeconds int
}

// InventoryConfig carries the business policy knobs consumed by the
// stock and order services. Values mirror the operational defaults the
// purchasing team runs with.
type InventoryConfig struct {
	DefaultTaxRate        float64
	OrderNumberPrefix     string
	AllowPartialReceiving bool
	AllowOverReceiving    bool
	LowStockThreshold     int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "inventory")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_STOCK_TTL_SECONDS", 60)
		viper.SetDefault("INVENTORY_DEFAULT_TAX_RATE", 10.0)
		viper.SetDefault("INVENTORY_PO_PREFIX", "PO")
		viper.SetDefault("INVENTORY_ALLOW_PARTIAL_RECEIVING", true)
		viper.SetDefault("INVENTORY_ALLOW_OVER_RECEIVING", false)
		viper.SetDefault("INVENTORY_LOW_STOCK_THRESHOLD", 10)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:         viper.GetBool("CACHE_ENABLED"),
				RedisURL:        viper.GetString("REDIS_URL"),
				RedisHost:       viper.GetString("REDIS_HOST"),
				RedisPort:       viper.GetString("REDIS_PORT"),
				RedisPassword:   viper.GetString("REDIS_PASSWORD"),
				RedisDB:         viper.GetInt("REDIS_DB"),
				StockTTLSeconds: viper.GetInt("CACHE_STOCK_TTL_SECONDS"),
			},
			Inventory: InventoryConfig{
				DefaultTaxRate:        viper.GetFloat64("INVENTORY_DEFAULT_TAX_RATE"),
				OrderNumberPrefix:     viper.GetString("INVENTORY_PO_PREFIX"),
				AllowPartialReceiving: viper.GetBool("INVENTORY_ALLOW_PARTIAL_RECEIVING"),
				AllowOverReceiving:    viper.GetBool("INVENTORY_ALLOW_OVER_RECEIVING"),
				LowStockThreshold:     viper.GetInt("INVENTORY_LOW_STOCK_THRESHOLD"),
			},
		}
	})

	return instance
}
