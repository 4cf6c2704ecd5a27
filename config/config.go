package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env  string
	Port string

	MongoURI    string
	MongoDB     string
	PostgresDSN string

	JWTSecret string

	FirebaseCredentialsFile string
	CloudinaryURL           string

	PushCooldownMS int

	// derived
	PushCooldown time.Duration
}

// Load reads configuration from the environment. Every key can be set as
// CAMPUSHUB_<KEY>; sensible defaults cover local development except for the
// secrets, which main validates.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("campushub")
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("mongo_uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo_db", "campushub")
	v.SetDefault("postgres_dsn", "postgres://localhost/campushub?sslmode=disable")
	v.SetDefault("push_cooldown_ms", 5000)

	c := &Config{
		Env:                     v.GetString("env"),
		Port:                    v.GetString("port"),
		MongoURI:                v.GetString("mongo_uri"),
		MongoDB:                 v.GetString("mongo_db"),
		PostgresDSN:             v.GetString("postgres_dsn"),
		JWTSecret:               v.GetString("jwt_secret"),
		FirebaseCredentialsFile: v.GetString("firebase_credentials_file"),
		CloudinaryURL:           v.GetString("cloudinary_url"),
		PushCooldownMS:          v.GetInt("push_cooldown_ms"),
	}

	if c.PushCooldownMS <= 0 {
		c.PushCooldownMS = 5000
	}
	c.PushCooldown = time.Duration(c.PushCooldownMS) * time.Millisecond

	return c, nil
}
