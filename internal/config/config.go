package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and the CLI.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	WorkbookPath string
	Autosave     bool
	PDFDir       string

	Institution    string
	Signatory      string
	SignatoryTitle string

	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	CacheTTL    time.Duration

	NATSURL     string
	NATSSubject string

	JWTSecret string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	UploadMaxBytes int64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether generated PDFs go to Cloudinary instead of disk.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CERTDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Certificate Desk")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("storage.workbook", "students_storage.xlsx")
	v.SetDefault("storage.autosave", true)
	v.SetDefault("pdf.dir", "generated_pdfs")
	v.SetDefault("database.sqlite_path", "certdesk.db")
	v.SetDefault("certificate.cache_ttl", "10m")
	v.SetDefault("nats.subject", "certificates.issued")
	v.SetDefault("cloudinary.folder", "certdesk/certificates")
	v.SetDefault("upload.max_mb", 10)

	ttlString := v.GetString("certificate.cache_ttl")
	if ttlString == "" {
		ttlString = "10m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid certificate cache ttl: %w", err)
	}

	maxMB := v.GetInt64("upload.max_mb")
	if maxMB <= 0 {
		maxMB = 10
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		WorkbookPath:           v.GetString("storage.workbook"),
		Autosave:               v.GetBool("storage.autosave"),
		PDFDir:                 v.GetString("pdf.dir"),
		Institution:            v.GetString("institution.name"),
		Signatory:              v.GetString("signatory.name"),
		SignatoryTitle:         v.GetString("signatory.title"),
		DatabaseURL:            v.GetString("database.url"),
		SQLitePath:             v.GetString("database.sqlite_path"),
		RedisURL:               v.GetString("redis.url"),
		CacheTTL:               ttl,
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxBytes:         maxMB * 1024 * 1024,
	}

	if cfg.WorkbookPath == "" {
		return Config{}, fmt.Errorf("storage workbook path must be provided")
	}

	if cfg.PDFDir == "" {
		cfg.PDFDir = "generated_pdfs"
	}

	return cfg, nil
}
