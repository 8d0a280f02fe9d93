package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI string
	DBName   string
	RedisURI string

	Port           string
	AllowedOrigins []string
	Environment    string

	JWTAccessSecret  string
	JWTRefreshSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleTimeout      time.Duration

	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string
	S3Bucket     string
	PresignTTL   time.Duration

	AIServiceURL string
	AITimeout    time.Duration

	STTAPIKey  string
	STTModel   string
	STTTimeout time.Duration
}

// Load reads configuration from the environment. Timeouts for every external
// collaborator are explicit knobs rather than per-call constants.
func Load() *Config {
	return &Config{
		MongoURI: getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/moa")),
		DBName:   getEnv("DB_NAME", "moa"),
		RedisURI: getEnv("REDIS_URI", "redis://localhost:6379/0"),

		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", getEnv("FRONTEND_URL", "http://localhost:3000"))),
		Environment:    strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		GoogleTimeout:      getEnvSeconds("GOOGLE_TIMEOUT_SECONDS", 10),

		AwsRegion:    getEnv("AWS_REGION", "ap-northeast-2"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		S3Bucket:     getEnv("AWS_S3_BUCKET", "moa-records"),
		PresignTTL:   getEnvSeconds("PRESIGN_TTL_SECONDS", 3600),

		AIServiceURL: getEnv("AI_SERVICE_URL", ""),
		AITimeout:    getEnvSeconds("AI_TIMEOUT_SECONDS", 60),

		STTAPIKey:  getEnv("OPENAI_API_KEY", ""),
		STTModel:   getEnv("STT_MODEL", "whisper-1"),
		STTTimeout: getEnvSeconds("STT_TIMEOUT_SECONDS", 60),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		out = []string{"http://localhost:3000"}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvSeconds(key string, def int) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return time.Duration(def) * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(def) * time.Second
	}
	return time.Duration(n) * time.Second
}
