package config

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type S3Config struct {
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	Local      bool   `yaml:"local"`
	CDNBaseURL string `yaml:"cdn_base_url"`
}

type JWTConfig struct {
	SecretKey       string `yaml:"secret_key"`
	AccessTokenTTL  string `yaml:"access_token_ttl"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl"`
}

type WebhookConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type AdminConfig struct {
	AdminToken string `yaml:"admin_token"`
}

// LimitsConfig : политики выдачи грантов
// SizeCeilingBytes задаётся по ролям, роль берётся из claims пользователя
type LimitsConfig struct {
	SizeCeilingBytes    map[string]int64 `yaml:"size_ceiling_bytes"`
	AllowedContentTypes []string         `yaml:"allowed_content_types"`
	GrantsPerMinute     int64            `yaml:"grants_per_minute"`
}

// StagingConfig : параметры staging-хранилища и уборки
type StagingConfig struct {
	GrantTTLSeconds     int `yaml:"grant_ttl_seconds"`
	SweepIntervalSec    int `yaml:"sweep_interval_seconds"`
	SignaturePrefixSize int `yaml:"signature_prefix_size"`
}
