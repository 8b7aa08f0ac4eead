package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the application configuration, populated by NewConfig.
var Conf *Config

func init() {
	Conf = NewConfig()
}

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugAddr                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	RateLimitConfig struct {
		AuthLimit int
		APILimit  int
		Window    time.Duration
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (local; default), TEST, QA, PROD
		Build    string
		AppName  string

		SecretKey         string
		SessionCookieName string

		WorkDir string
		DataDir string
		LogDir  string

		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		RateLimit RateLimitConfig
	}
)

// NewConfig loads the application configuration: viper defaults first,
// then config/.env.<env> if it exists, then environment variables
// prefixed with the current env name.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "kq2x-ner)dmw$+48=bz&yoxh7(p!v)#*g5(#tg9h^$dewm3eny")
	v.SetDefault("sessionCookieName", "darasa_session")
	v.SetDefault("frontendBaseURL", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("jwtExpirationDelta", 1*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugAddr", ":6060")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("rateLimitAuth", 20)
	v.SetDefault("rateLimitAPI", 100)
	v.SetDefault("rateLimitWindow", time.Minute)
	v.SetDefault("dataDir", "data")
	v.SetDefault("logDir", "logs")

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("debug", false)
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	appName := v.GetString("appName")
	Conf = &Config{
		Debug:             v.GetBool("debug"),
		TestMode:          v.GetBool("testMode"),
		Env:               env,
		Build:             v.GetString("build"),
		AppName:           appName,
		SecretKey:         v.GetString("secretKey"),
		SessionCookieName: v.GetString("sessionCookieName"),
		WorkDir:           wd,
		DataDir:           filepath.Join(wd, v.GetString("dataDir")),
		LogDir:            filepath.Join(wd, v.GetString("logDir")),
		FrontendBaseURL:   v.GetString("frontendBaseURL"),
		DefaultFromEmail:  mail.Address{Name: appName, Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:    v.GetString("sendgridApiKey"),
		RollbarToken:      v.GetString("rollbarToken"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			DebugAddr:                 v.GetString("serverDebugAddr"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		RateLimit: RateLimitConfig{
			AuthLimit: v.GetInt("rateLimitAuth"),
			APILimit:  v.GetInt("rateLimitAPI"),
			Window:    v.GetDuration("rateLimitWindow"),
		},
	}
	return Conf
}
