package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Client struct {
	BaseURL       string        `validate:"required,url"`
	TokenFile     string        `validate:"required"`
	ChatRedisURL  string        `validate:"omitempty,url"`
	MaxRetryDelay time.Duration `validate:"gte=1s"`
	LogLevel      string
	LogDev        bool
}

type Server struct {
	Addr        string        `validate:"required"`
	JWTSecret   string        `validate:"required,min=8"`
	DatabaseURL string
	AFKTimeout  time.Duration `validate:"gte=0"`
	LogLevel    string
	LogDev      bool
}

var validate = validator.New()

// loadDotEnv reads .env when present. A missing file is not an error;
// existing environment variables win over the file.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadClient(envFiles ...string) (Client, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return Client{}, err
	}

	tokenFile := getenv("QUORIDOR_TOKEN_FILE", "")
	if tokenFile == "" {
		p, err := xdg.ConfigFile(filepath.Join("quoridor", "token"))
		if err != nil {
			return Client{}, fmt.Errorf("token path: %w", err)
		}
		tokenFile = p
	}

	retry, err := durationEnv("QUORIDOR_MAX_RETRY", 64*time.Second)
	if err != nil {
		return Client{}, err
	}

	c := Client{
		BaseURL:       getenv("QUORIDOR_BASE_URL", "http://127.0.0.1:8080"),
		TokenFile:     tokenFile,
		ChatRedisURL:  getenv("QUORIDOR_CHAT_REDIS_URL", ""),
		MaxRetryDelay: retry,
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogDev:        boolEnv("LOG_DEV"),
	}
	if err := validate.Struct(c); err != nil {
		return Client{}, fmt.Errorf("client config: %w", err)
	}
	return c, nil
}

func LoadServer(envFiles ...string) (Server, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return Server{}, err
	}

	afk, err := durationEnv("QUORIDOR_AFK_TIMEOUT", 180*time.Second)
	if err != nil {
		return Server{}, err
	}

	s := Server{
		Addr:        getenv("QUORIDOR_ADDR", ":8080"),
		JWTSecret:   getenv("QUORIDOR_JWT_SECRET", ""),
		DatabaseURL: getenv("QUORIDOR_DATABASE_URL", ""),
		AFKTimeout:  afk,
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogDev:      boolEnv("LOG_DEV"),
	}
	if err := validate.Struct(s); err != nil {
		return Server{}, fmt.Errorf("server config: %w", err)
	}
	return s, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolEnv(k string) bool {
	b, _ := strconv.ParseBool(os.Getenv(k))
	return b
}

// durationEnv accepts Go durations ("90s") or bare seconds ("90").
func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
