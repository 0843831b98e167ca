package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "THREADBOARD_"

type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	BaseURL     string `yaml:"base_url"`
	Language    string `yaml:"language"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

type Config struct {
	Server        string        `yaml:"server"`
	Backend       string        `yaml:"backend"`
	Dsn           string        `yaml:"dsn"`
	APIURL        string        `yaml:"api_url"`
	Timeout       time.Duration `yaml:"timeout"`
	Cache         bool          `yaml:"cache"`
	PostInterval  time.Duration `yaml:"post_interval"`
	Translations  string        `yaml:"translations"`
	LogLevel      string        `yaml:"log_level"`
	DateLayout    string        `yaml:"date_layout"`
	Fixture       string        `yaml:"fixture"`
	SessionCookie string        `yaml:"session_cookie"`
	Site          SiteConfig    `yaml:"site"`
}

func NewConfig() *Config {
	return &Config{
		Server:        ":8080",
		Backend:       "memory",
		Dsn:           "./db/threadboard.sqlite",
		Timeout:       10 * time.Second,
		Cache:         true,
		PostInterval:  10 * time.Second,
		Translations:  "./translations",
		LogLevel:      "info",
		DateLayout:    "1/2/2006",
		SessionCookie: "threadboard_session",
		Site: SiteConfig{
			Title:       "threadboard",
			Description: "Threaded discussions",
			BaseURL:     "http://localhost:8080",
			Language:    "en",
		},
	}
}

// keys lists every setting that can come from the environment or a flag.
var keys = []struct {
	name  string
	usage string
}{
	{"server", "HTTP listen address"},
	{"backend", "backend kind: rest, memory, sqlite or postgres"},
	{"dsn", "database DSN for sqlite and postgres"},
	{"api-url", "base URL of the REST backend"},
	{"timeout", "backend request timeout"},
	{"cache", "cache backend reads"},
	{"post-interval", "minimum time between two posts of the same user"},
	{"language", "site language"},
	{"translations", "directory with <lang>.yaml translation files"},
	{"log-level", "debug, info, warn or error"},
	{"date-layout", "layout for dates older than a week"},
	{"fixture", "YAML fixture loaded into the memory backend"},
	{"session-cookie", "name of the session cookie"},
	{"title", "site title"},
	{"description", "site description"},
	{"base-url", "public base URL used in feeds and sitemaps"},
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "server":
		c.Server = value
	case "backend":
		c.Backend = strings.ToLower(value)
	case "dsn":
		c.Dsn = value
	case "api-url":
		c.APIURL = value
	case "timeout":
		c.Timeout, err = time.ParseDuration(value)
	case "cache":
		c.Cache, err = strconv.ParseBool(value)
	case "post-interval":
		c.PostInterval, err = time.ParseDuration(value)
	case "language":
		c.Site.Language = value
	case "translations":
		c.Translations = value
	case "log-level":
		c.LogLevel = value
	case "date-layout":
		c.DateLayout = value
	case "fixture":
		c.Fixture = value
	case "session-cookie":
		c.SessionCookie = value
	case "title":
		c.Site.Title = value
	case "description":
		c.Site.Description = value
	case "base-url":
		c.Site.BaseURL = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func envName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Load merges, in order of precedence from lowest: defaults, the YAML file
// named by -config, the .env file and environment, command line flags.
func (c *Config) Load(args []string) error {
	fs := flag.NewFlagSet("threadboard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to a YAML config file")
	envFile := fs.String("env-file", ".env", "path to a .env file")
	for _, k := range keys {
		fs.String(k.name, "", k.usage)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *configPath != "" {
		if err := c.LoadFile(*configPath); err != nil {
			return err
		}
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("env file %s: %w", *envFile, err)
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server = ":" + port
	}
	for _, k := range keys {
		if v, ok := os.LookupEnv(envName(k.name)); ok {
			if err := c.set(k.name, v); err != nil {
				return err
			}
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || f.Name == "config" || f.Name == "env-file" {
			return
		}
		err = c.set(f.Name, f.Value.String())
	})
	if err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "rest":
		if c.APIURL == "" {
			return errors.New("the rest backend needs api-url")
		}
	case "sqlite", "postgres":
		if c.Dsn == "" {
			return fmt.Errorf("the %s backend needs dsn", c.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.PostInterval < 0 {
		return errors.New("post-interval must not be negative")
	}
	if c.SessionCookie == "" {
		return errors.New("session-cookie must not be empty")
	}
	return nil
}
