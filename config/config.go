package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config is built once at startup and handed to every component that needs it.
type Config struct {
	StoreDriver string

	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	RunMigrations    bool

	MongoURI      string
	MongoDatabase string

	ServerPort string
	JWTSecret  string
	TokenTTL   time.Duration

	CORSOrigin        string
	AuthRatePerMinute int
	AuthRateBurst     int

	LogLevel string
}

// LoadConfig reads an optional .env file from the working directory and
// then the process environment. A .env file that exists but cannot be
// parsed is fatal.
func LoadConfig() Config {
	if err := loadDotEnv(); err != nil {
		panic(err)
	}

	return Config{
		StoreDriver:       getEnv("STORE_DRIVER", DriverPostgres),
		DatabaseHost:      getEnv("DATABASE_HOST", "db"),
		DatabasePort:      getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:      getEnv("DATABASE_USER", "postgres"),
		DatabasePassword:  getEnv("DATABASE_PASSWORD", "password"),
		DatabaseName:      getEnv("DATABASE_NAME", "tradehub"),
		RunMigrations:     getEnvBool("RUN_MIGRATIONS", true),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "post_apocalypse_trade_hub"),
		ServerPort:        getEnv("SERVER_PORT", "5000"),
		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		TokenTTL:          getEnvDuration("TOKEN_TTL", time.Hour),
		CORSOrigin:        getEnv("CORS_ORIGIN", "*"),
		AuthRatePerMinute: getEnvInt("AUTH_RATE_PER_MINUTE", 30),
		AuthRateBurst:     getEnvInt("AUTH_RATE_BURST", 10),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// loadDotEnv loads the given files, or .env when none are given. Missing
// files are skipped. Variables already set in the environment win.
func loadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadConfigOrPanic() Config {
	cfg := LoadConfig()
	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverMongo {
		panic(fmt.Sprintf("unknown STORE_DRIVER %q", cfg.StoreDriver))
	}
	return cfg
}

func (c Config) PostgresConnStr() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
	)
}

// PostgresURL is the URL form of PostgresConnStr, required by the migrator.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DatabaseUser, c.DatabasePassword),
		Host:     c.DatabaseHost + ":" + c.DatabasePort,
		Path:     "/" + c.DatabaseName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func InitDB(ctx context.Context, cfg Config) *sql.DB {
	db, err := sql.Open("postgres", cfg.PostgresConnStr())
	if err != nil {
		panic(fmt.Sprintf("database connection failed: %v", err))
	}
	if err = db.PingContext(ctx); err != nil {
		panic(fmt.Sprintf("database ping failed: %v", err))
	}
	return db
}

func InitMongo(ctx context.Context, cfg Config) *mongo.Client {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		panic(fmt.Sprintf("mongo connection failed: %v", err))
	}
	if err = client.Ping(ctx, nil); err != nil {
		panic(fmt.Sprintf("mongo ping failed: %v", err))
	}
	return client
}
