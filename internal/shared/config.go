package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"nowplaying/internal/domain"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"`

	TMDBBase        string        `env:"TMDB_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	TMDBImageBase   string        `env:"TMDB_IMAGE_BASE_URL" envDefault:"https://image.tmdb.org/t/p/w500"`
	TMDBKey         string        `env:"TMDB_API_KEY"`
	TMDBRPS         int           `env:"TMDB_RPS" envDefault:"10"`
	TMDBMaxAttempts int           `env:"TMDB_MAX_ATTEMPTS" envDefault:"1"`
	TMDBTimeout     time.Duration `env:"TMDB_TIMEOUT" envDefault:"10s"`
	PlaceholderURL  string        `env:"PLACEHOLDER_POSTER_URL" envDefault:"https://via.placeholder.com/500x750/1a1a1a/ffffff?text=No+Image"`

	PrimaryLang   string `env:"PRIMARY_LANG" envDefault:"ko-KR"`
	SecondaryLang string `env:"SECONDARY_LANG" envDefault:"en-US"`

	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"10m"`

	MySQLDSN         string        `env:"MYSQL_DSN"`
	JournalRetention time.Duration `env:"JOURNAL_RETENTION" envDefault:"168h"`

	SessionCapacity int           `env:"SESSION_CAPACITY" envDefault:"10000"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	WarmPages   int `env:"WARM_PAGES" envDefault:"5"`
	WarmWorkers int `env:"WARM_WORKERS" envDefault:"2"`
}

func (c Config) Langs() domain.LangPair {
	return domain.LangPair{Primary: c.PrimaryLang, Secondary: c.SecondaryLang}
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env present but unreadable")
	}
	return Parse(env.Options{})
}

// Parse reads the configuration from the environment (or opts.Environment).
func Parse(opts env.Options) (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	if c.TMDBKey == "" {
		log.Warn().Msg("TMDB_API_KEY is empty")
	}
	return c, nil
}

func (c Config) validate() error {
	switch {
	case c.PrimaryLang == "" || c.SecondaryLang == "":
		return errors.New("config: PRIMARY_LANG and SECONDARY_LANG are required")
	case c.PrimaryLang == c.SecondaryLang:
		return fmt.Errorf("config: PRIMARY_LANG and SECONDARY_LANG must differ (both %q)", c.PrimaryLang)
	case c.TMDBMaxAttempts < 1:
		return errors.New("config: TMDB_MAX_ATTEMPTS must be >= 1")
	case c.SessionCapacity < 1:
		return errors.New("config: SESSION_CAPACITY must be >= 1")
	}
	return nil
}
