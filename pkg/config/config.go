package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Thumbnail ThumbnailConfig
	Photos    PhotoConfig
	Directory DirectoryConfig
	ChangeLog ChangeLogConfig
	Export    ExportConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	AutoMigrate   bool
	MigrationsDir string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how access tokens from the identity provider are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ThumbnailConfig controls the footprint of audit-trail photo thumbnails.
type ThumbnailConfig struct {
	Width     int
	Height    int
	Mode      string
	MaxPixels int64
}

// PhotoConfig bounds uploaded person photos.
type PhotoConfig struct {
	MaxUploadBytes int64
}

// DirectoryConfig carries organisation specific validation rules.
type DirectoryConfig struct {
	EmailDomain     string
	TeacherRoleName string
	ReferencePolicy string
}

// ChangeLogConfig tunes caching of the latest change per person.
type ChangeLogConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportConfig configures history downloads. PDFFontPath points at a UTF-8
// TrueType font; without it PDFs fall back to a core font that has no Cyrillic.
type ExportConfig struct {
	PDFFontPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Thumbnail = ThumbnailConfig{
		Width:     v.GetInt("THUMBNAIL_WIDTH"),
		Height:    v.GetInt("THUMBNAIL_HEIGHT"),
		Mode:      strings.ToLower(strings.TrimSpace(v.GetString("THUMBNAIL_MODE"))),
		MaxPixels: v.GetInt64("THUMBNAIL_MAX_PIXELS"),
	}

	maxPhoto := v.GetInt64("PHOTO_MAX_UPLOAD_BYTES")
	if maxPhoto <= 0 {
		maxPhoto = 5 * 1024 * 1024
	}
	cfg.Photos = PhotoConfig{MaxUploadBytes: maxPhoto}

	cfg.Directory = DirectoryConfig{
		EmailDomain:     strings.TrimPrefix(strings.TrimSpace(v.GetString("DIRECTORY_EMAIL_DOMAIN")), "@"),
		TeacherRoleName: v.GetString("DIRECTORY_TEACHER_ROLE"),
		ReferencePolicy: strings.ToLower(strings.TrimSpace(v.GetString("CHANGELOG_REFERENCE_POLICY"))),
	}

	cfg.ChangeLog = ChangeLogConfig{
		CacheEnabled: v.GetBool("ENABLE_CHANGELOG_CACHE"),
		CacheTTL:     parseDuration(v.GetString("CHANGELOG_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Export = ExportConfig{PDFFontPath: strings.TrimSpace(v.GetString("EXPORT_PDF_FONT"))}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "phonebook")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_MIGRATIONS_DIR", "")

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("THUMBNAIL_WIDTH", 100)
	v.SetDefault("THUMBNAIL_HEIGHT", 130)
	v.SetDefault("THUMBNAIL_MODE", "stretch")
	v.SetDefault("THUMBNAIL_MAX_PIXELS", 40_000_000)
	v.SetDefault("PHOTO_MAX_UPLOAD_BYTES", 5*1024*1024)

	v.SetDefault("DIRECTORY_EMAIL_DOMAIN", "buditel.bg")
	v.SetDefault("DIRECTORY_TEACHER_ROLE", "Учител")
	v.SetDefault("CHANGELOG_REFERENCE_POLICY", "label")

	v.SetDefault("ENABLE_CHANGELOG_CACHE", false)
	v.SetDefault("CHANGELOG_CACHE_TTL", "5m")
	v.SetDefault("EXPORT_PDF_FONT", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
