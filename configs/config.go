package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	FacebookAppID       string
	FacebookAppSecret   string
	FacebookRedirectURI string
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURI   string
	PostgresURI         string
	MigrationsPath      string
	RedisURI            string
	FrontendURL         string
	R2                  R2
	SecretKey           string
	CookieName          string
	SchedulerSpec       string
}

func LoadConfig() *Config {
	return &Config{
		FacebookAppID:       getEnv("FACEBOOK_APP_ID", ""),
		FacebookAppSecret:   getEnv("FACEBOOK_APP_SECRET", ""),
		FacebookRedirectURI: getEnv("FACEBOOK_REDIRECT_URI", ""),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:   getEnv("GOOGLE_REDIRECT_URI", ""),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "file://db/migrations"),
		RedisURI:            getEnv("REDIS_URI", ""),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:     getEnv("SECRET_KEY", ""),
		CookieName:    getEnv("COOKIE_NAME", "socialpost_session"),
		SchedulerSpec: getEnv("SCHEDULER_SPEC", "@every 0h1m0s"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
