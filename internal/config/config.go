package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// App block (optional in YAML).
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
	} `yaml:"server"`

	Log struct {
		Env   string `yaml:"env"`   // dev | prod
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	AWS struct {
		Region string `yaml:"region"`
	} `yaml:"aws"`

	Cognito struct {
		UserPoolID string `yaml:"user_pool_id"`
		ClientID   string `yaml:"client_id"`
		// Timeout applied to every pool operation (lookup, create,
		// set-password, admin auth).
		Timeout string `yaml:"timeout"`
		// EmailAsUsername makes the derived pool username the email address
		// instead of <provider>_<subject>.
		EmailAsUsername *bool `yaml:"email_as_username"`
	} `yaml:"cognito"`

	// Apple Sign In audiences: iOS bundle ID plus the Services ID used by
	// web/Android surfaces.
	Apple struct {
		Audiences []string `yaml:"audiences"`
	} `yaml:"apple"`

	// Google Sign-In audiences: one OAuth client ID per surface
	// (iOS, Android, Web).
	Google struct {
		Audiences []string `yaml:"audiences"`
	} `yaml:"google"`

	JWKS struct {
		FetchTimeout string `yaml:"fetch_timeout"`
	} `yaml:"jwks"`

	Store struct {
		UsersFile string `yaml:"users_file"`
	} `yaml:"store"`
}

func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Log.Env == "" {
		c.Log.Env = c.App.Env
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.Cognito.Timeout == "" {
		c.Cognito.Timeout = "10s"
	}
	if c.JWKS.FetchTimeout == "" {
		c.JWKS.FetchTimeout = "10s"
	}
	if c.Store.UsersFile == "" {
		c.Store.UsersFile = "./data/users.json"
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}

	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{
		c.Server.ReadTimeout,
		c.Server.WriteTimeout,
		c.Cognito.Timeout,
		c.JWKS.FetchTimeout,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks startup-fatal conditions. The identity pool configuration
// is required: requests cannot degrade gracefully without it.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Cognito.UserPoolID) == "" {
		missing = append(missing, "cognito.user_pool_id (COGNITO_USER_POOL_ID)")
	}
	if strings.TrimSpace(c.Cognito.ClientID) == "" {
		missing = append(missing, "cognito.client_id (COGNITO_CLIENT_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CognitoIssuer returns the issuer string the user pool signs tokens with.
func (c *Config) CognitoIssuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.AWS.Region, c.Cognito.UserPoolID)
}

// CognitoJWKSURL returns the pool's key-distribution endpoint.
func (c *Config) CognitoJWKSURL() string {
	return c.CognitoIssuer() + "/.well-known/jwks.json"
}

// EmailAsUsername reports whether the pool is configured email-as-username.
// Defaults to true, matching the pool setup this service was built against.
func (c *Config) EmailAsUsername() bool {
	if c.Cognito.EmailAsUsername == nil {
		return true
	}
	return *c.Cognito.EmailAsUsername
}

// MustDuration parses a duration string previously validated by Load.
// It panics on a parse failure; callers must only pass values Load accepted.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: invalid duration %q: %v", s, err))
	}
	return d
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
		if c.Log.Env == "" || c.Log.Env == "dev" {
			c.Log.Env = v
		}
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = splitCSV(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("AWS_REGION"); ok {
		c.AWS.Region = v
	}
	if v, ok := getEnvStr("COGNITO_USER_POOL_ID"); ok {
		c.Cognito.UserPoolID = v
	}
	if v, ok := getEnvStr("COGNITO_CLIENT_ID"); ok {
		c.Cognito.ClientID = v
	}
	if v, ok := getEnvBool("COGNITO_EMAIL_AS_USERNAME"); ok {
		c.Cognito.EmailAsUsername = &v
	}
	// Comma-separated audience lists, one entry per client surface.
	if v, ok := getEnvStr("APPLE_BUNDLE_ID"); ok {
		c.Apple.Audiences = splitCSV(v)
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Google.Audiences = splitCSV(v)
	}
	if v, ok := getEnvStr("USERS_FILE"); ok {
		c.Store.UsersFile = v
	}
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
