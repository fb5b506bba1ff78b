package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName          string
	Build            string
	Env              string // DEV (local; default), TEST, QA, PROD
	Debug            bool
	TestMode         bool
	SecretKey        string
	OwnerEmail       string // the single account allowed to review admin requests
	DefaultFromEmail mail.Address
	FrontendBaseURL  string
	SendgridApiKey   string
	RollbarToken     string

	Server struct {
		Host                      string
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		DisableReqLogs            bool
		AllowedOrigins            []string
	}

	Database struct {
		Engine        string
		Driver        string // postgres (lib/pq) | pgx
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Media struct {
		Root          string
		BaseURL       string
		MaxUploadSize int64
	}
}

func (c *Config) IsProd() bool {
	return c.Env == "PROD"
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Shule")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "n4v&2ph!q$e0x#d9t-7zm@u^w6k(r)yb+3c*sj1lgo=i8fa5")
	conf.SetDefault("ownerEmail", "owner@localhost")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("defaultFromName", "Shule")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverPort", "8000")
	conf.SetDefault("serverDebugPort", "4000")
	conf.SetDefault("jwtExpirationDelta", 24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("shutdownTimeout", 5*time.Second)
	conf.SetDefault("disableReqLogs", false)
	conf.SetDefault("allowedOrigins", "http://localhost:3000")

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbDriver", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbName", "shule")
	conf.SetDefault("dbUser", "shule")
	conf.SetDefault("dbPassword", "shule")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("mediaRoot", "media")
	conf.SetDefault("mediaBaseURL", "/media")
	conf.SetDefault("mediaMaxUploadSize", 5<<20) // 5MB

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	case "QA", "PROD":
		conf.SetDefault("debug", false)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := new(Config)
	c.Env = env
	c.AppName = conf.GetString("appName")
	c.Build = conf.GetString("build")
	c.Debug = conf.GetBool("debug")
	c.TestMode = conf.GetBool("testMode")
	c.SecretKey = conf.GetString("secretKey")
	c.OwnerEmail = CleanString(conf.GetString("ownerEmail"), true /* lower */)
	c.DefaultFromEmail = mail.Address{
		Name:    conf.GetString("defaultFromName"),
		Address: conf.GetString("defaultFromEmail"),
	}
	c.FrontendBaseURL = strings.TrimSuffix(conf.GetString("frontendBaseURL"), "/")
	c.SendgridApiKey = conf.GetString("sendgridApiKey")
	c.RollbarToken = conf.GetString("rollbarToken")

	c.Server.Host = conf.GetString("serverHost")
	c.Server.Address = net.JoinHostPort("", conf.GetString("serverPort"))
	c.Server.DebugHost = net.JoinHostPort("", conf.GetString("serverDebugPort"))
	c.Server.JWTExpirationDelta = conf.GetDuration("jwtExpirationDelta")
	c.Server.JWTRefreshExpirationDelta = conf.GetDuration("jwtRefreshExpirationDelta")
	c.Server.ShutdownTimeout = conf.GetDuration("shutdownTimeout")
	c.Server.DisableReqLogs = conf.GetBool("disableReqLogs")
	c.Server.AllowedOrigins = splitList(conf.GetString("allowedOrigins"))

	c.Database.Engine = conf.GetString("dbEngine")
	c.Database.Driver = conf.GetString("dbDriver")
	c.Database.Host = conf.GetString("dbHost")
	c.Database.Port = conf.GetString("dbPort")
	c.Database.Name = conf.GetString("dbName")
	c.Database.User = conf.GetString("dbUser")
	c.Database.Password = conf.GetString("dbPassword")
	c.Database.AdminUser = conf.GetString("dbAdminUser")
	c.Database.AdminPassword = conf.GetString("dbAdminPassword")
	c.Database.DisableTLS = conf.GetBool("dbDisableTLS")

	c.Media.Root = conf.GetString("mediaRoot")
	c.Media.BaseURL = strings.TrimSuffix(conf.GetString("mediaBaseURL"), "/")
	c.Media.MaxUploadSize = conf.GetInt64("mediaMaxUploadSize")
	return c
}

// DatabaseAddress returns the "host:port" of the database server.
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanString(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}
