package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
	Transfers TransferConfig
	Ledger    LedgerConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
	// TxTimeout límite de cada transacción del motor de stock.
	TxTimeout time.Duration
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig caché de niveles y locks de traslados. Addr vacío = deshabilitado.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	LevelCacheTTL time.Duration
	LockTTL       time.Duration
}

// Enabled indica si hay Redis configurado.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// TransferConfig numeración de traslados.
type TransferConfig struct {
	NumberPrefix      string
	NumberingAttempts int
	NumberingBackoff  time.Duration
}

// LedgerConfig paginación del libro de stock.
type LedgerConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, DB_PORT, JWT_SECRET, REDIS_ADDR, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "inventario-stock"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "inventario_stock"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 25),
			TxTimeout:   getDuration(v, "DB_TX_TIMEOUT", 15*time.Second),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "inventario-stock"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			Addr:          getString(v, "REDIS_ADDR", ""),
			Password:      getString(v, "REDIS_PASSWORD", ""),
			DB:            getInt(v, "REDIS_DB", 0),
			LevelCacheTTL: getDuration(v, "REDIS_LEVEL_CACHE_TTL", 30*time.Second),
			LockTTL:       getDuration(v, "REDIS_LOCK_TTL", 30*time.Second),
		},
		Transfers: TransferConfig{
			NumberPrefix:      getString(v, "TRANSFER_NUMBER_PREFIX", "TRF"),
			NumberingAttempts: getInt(v, "TRANSFER_NUMBERING_ATTEMPTS", 3),
			NumberingBackoff:  getDuration(v, "TRANSFER_NUMBERING_BACKOFF", 50*time.Millisecond),
		},
		Ledger: LedgerConfig{
			DefaultPageSize: getInt(v, "LEDGER_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getInt(v, "LEDGER_MAX_PAGE_SIZE", 100),
		},
	}

	if cfg.Transfers.NumberingAttempts < 1 {
		return nil, fmt.Errorf("TRANSFER_NUMBERING_ATTEMPTS debe ser >= 1")
	}
	if cfg.Ledger.DefaultPageSize < 1 || cfg.Ledger.MaxPageSize < cfg.Ledger.DefaultPageSize {
		return nil, fmt.Errorf("tamaños de página del libro inválidos")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return def
		}
		return d
	}
	return def
}
