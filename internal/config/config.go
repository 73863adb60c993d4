package config

import (
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/domalend/oracle/internal/domain"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SubgraphURL            string
	SubgraphAPIKey         string
	SubgraphRetryMax       int
	SubgraphRetryBaseDelay time.Duration

	RPCURL           string
	OracleAddress    string
	SignerPrivateKey string

	AssetInterval    time.Duration
	CryptoInterval   time.Duration
	MaxItemsPerCycle int
	AssetDelay       time.Duration
	ItemDelay        time.Duration
	MinPercentChange float64
	ConfirmTimeout   time.Duration
	MinBalanceWei    *big.Int

	CoinGeckoURL      string
	CoinGeckoAPIKey   string
	CoinGeckoDelay    time.Duration
	CoinGeckoRetryMax int
	CryptoTokens      map[string]string // symbol -> token address

	DatabaseURL         string
	HTTPPort            string
	AdminAPIKey         string
	SheetsSpreadsheetID string
	GoogleCredentials   string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		SubgraphURL:            envOrDefault("SUBGRAPH_URL", "https://api-testnet.doma.xyz/graphql"),
		SubgraphAPIKey:         envOrDefault("SUBGRAPH_API_KEY", ""),
		SubgraphRetryMax:       envOrDefaultInt("SUBGRAPH_RETRY_MAX", 3),
		SubgraphRetryBaseDelay: envOrDefaultDuration("SUBGRAPH_RETRY_BASE_DELAY", 2*time.Second),

		RPCURL:           envOrDefault("RPC_URL", "https://rpc-testnet.doma.xyz"),
		OracleAddress:    envOrDefault("ORACLE_ADDRESS", ""),
		SignerPrivateKey: envOrDefault("SIGNER_PRIVATE_KEY", ""),

		AssetInterval:    envOrDefaultMillisOrDuration("ASSET_INTERVAL", 10*time.Minute),
		CryptoInterval:   envOrDefaultMillisOrDuration("CRYPTO_INTERVAL", 30*time.Minute),
		MaxItemsPerCycle: envOrDefaultInt("MAX_ITEMS_PER_CYCLE", 100),
		AssetDelay:       envOrDefaultMillisOrDuration("ASSET_DELAY", 500*time.Millisecond),
		ItemDelay:        envOrDefaultMillisOrDuration("ITEM_DELAY", 2*time.Second),
		MinPercentChange: envOrDefaultFloat("MIN_PERCENT_CHANGE", 1.0),
		ConfirmTimeout:   envOrDefaultDuration("CONFIRM_TIMEOUT", 3*time.Minute),
		MinBalanceWei:    envOrDefaultBigInt("MIN_BALANCE_WEI", big.NewInt(10_000_000_000_000_000)),

		CoinGeckoURL:      envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoAPIKey:   envOrDefault("COINGECKO_API_KEY", ""),
		CoinGeckoDelay:    envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax: envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		CryptoTokens:      envOrDefaultMap("CRYPTO_TOKENS"),

		DatabaseURL:         envOrDefault("DATABASE_URL", ""),
		HTTPPort:            envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:         envOrDefault("ADMIN_API_KEY", ""),
		SheetsSpreadsheetID: envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		GoogleCredentials:   envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),
	}
}

// ValidateBroadcast checks the settings every command that writes to the oracle needs.
func (c Config) ValidateBroadcast() error {
	var missing []string
	if c.OracleAddress == "" {
		missing = append(missing, "ORACLE_ADDRESS")
	}
	if c.SignerPrivateKey == "" {
		missing = append(missing, "SIGNER_PRIVATE_KEY")
	}
	if c.RPCURL == "" {
		missing = append(missing, "RPC_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingConfig, strings.Join(missing, ", "))
	}
	if _, err := domain.NormalizeAddress(c.OracleAddress); err != nil {
		return fmt.Errorf("ORACLE_ADDRESS: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			slog.Warn("invalid float env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

// envOrDefaultMillisOrDuration reads KEY_MS as integer milliseconds first, then KEY as a duration.
func envOrDefaultMillisOrDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key + "_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			slog.Warn("invalid millisecond env var, using default", "key", key+"_MS", "value", v, "default", defaultVal)
			return defaultVal
		}
		return time.Duration(ms) * time.Millisecond
	}
	return envOrDefaultDuration(key, defaultVal)
}

func envOrDefaultBigInt(key string, defaultVal *big.Int) *big.Int {
	if v := os.Getenv(key); v != "" {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok || n.Sign() < 0 {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

// envOrDefaultMap parses "SYM=0xaddr,SYM2=0xaddr2". Malformed pairs are skipped.
func envOrDefaultMap(key string) map[string]string {
	result := make(map[string]string)
	v := os.Getenv(key)
	if v == "" {
		return result
	}
	for _, pair := range strings.Split(v, ",") {
		sym, addr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		sym, addr = strings.ToUpper(strings.TrimSpace(sym)), strings.TrimSpace(addr)
		if !ok || sym == "" || addr == "" {
			slog.Warn("invalid map entry in env var, skipping", "key", key, "entry", pair)
			continue
		}
		result[sym] = addr
	}
	return result
}
