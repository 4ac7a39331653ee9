package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string `json:"port"`

	// Local durable storage for the active schema and the projects
	StateDriver string `json:"stateDriver"` // "file" (default) | "redis"
	StateDir    string `json:"stateDir"`    // for file: storage folder
	RedisAddr   string `json:"redisAddr"`
	StateKey    string `json:"stateKey"`
	ProjectsKey string `json:"projectsKey"`

	// Remote backend the schema is synced to
	SchemaName string `json:"schemaName"`
	Backend    string `json:"backend"` // "supabase" (default) | "postgres"
	BackendURL string `json:"backendUrl"`
	BackendKey string `json:"backendKey"`

	TypesDir    string   `json:"typesDir"` // extra column type catalogs (*.yaml)
	SentryDSN   string   `json:"sentryDsn"`
	CORSOrigins []string `json:"corsOrigins"`
}

func def() Config {
	return Config{
		Port: "8080",

		StateDriver: "file",
		StateDir:    ".visubase",
		RedisAddr:   "localhost:6379",
		StateKey:    "visubase-storage",
		ProjectsKey: "visubase-projects",

		SchemaName: "default",
		Backend:    "supabase",

		CORSOrigins: []string{"http://localhost:5173"},
	}
}

func (c Config) Validate() error {
	switch c.StateDriver {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown state driver %q (want file or redis)", c.StateDriver)
	}
	switch c.Backend {
	case "supabase", "postgres":
	default:
		return fmt.Errorf("unknown backend %q (want supabase or postgres)", c.Backend)
	}
	if strings.TrimSpace(c.StateKey) == "" || strings.TrimSpace(c.ProjectsKey) == "" {
		return errors.New("state and projects keys must not be empty")
	}
	if c.StateKey == c.ProjectsKey {
		return errors.New("state and projects keys must differ")
	}
	return nil
}

func loadJSON(path string, c Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvList(k string, fallback []string) []string {
	v := getenv(k, "")
	if v == "" {
		return fallback
	}
	return splitList(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve applies defaults, the JSON file (if it exists), a .env file from
// the working directory, then VISUBASE_* variables. Variables already set in
// the environment win over .env.
func Resolve(jsonPath string) Config {
	cfg := def()

	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		c2, err := loadJSON(jsonPath, cfg)
		if err != nil {
			log.Printf("config: ignoring %s: %v", jsonPath, err)
		} else {
			cfg = c2
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env: %v", err)
	}

	cfg.Port = getenv("VISUBASE_PORT", cfg.Port)
	cfg.StateDriver = getenv("VISUBASE_STATE_DRIVER", cfg.StateDriver)
	cfg.StateDir = getenv("VISUBASE_STATE_DIR", cfg.StateDir)
	cfg.RedisAddr = getenv("VISUBASE_REDIS_ADDR", cfg.RedisAddr)
	cfg.StateKey = getenv("VISUBASE_STATE_KEY", cfg.StateKey)
	cfg.ProjectsKey = getenv("VISUBASE_PROJECTS_KEY", cfg.ProjectsKey)

	cfg.SchemaName = getenv("VISUBASE_SCHEMA_NAME", cfg.SchemaName)
	cfg.Backend = getenv("VISUBASE_BACKEND", cfg.Backend)
	cfg.BackendURL = getenv("VISUBASE_BACKEND_URL", cfg.BackendURL)
	cfg.BackendKey = getenv("VISUBASE_BACKEND_KEY", cfg.BackendKey)

	cfg.TypesDir = getenv("VISUBASE_TYPES_DIR", cfg.TypesDir)
	cfg.SentryDSN = getenv("VISUBASE_SENTRY_DSN", cfg.SentryDSN)
	cfg.CORSOrigins = getenvList("VISUBASE_CORS_ORIGINS", cfg.CORSOrigins)
	return cfg
}

// LoadWithPath resolves the config and then applies command line flags.
func LoadWithPath(jsonPath string, args []string) (Config, error) {
	fs := flag.NewFlagSet("visubase", flag.ContinueOnError)
	fs.String("config", jsonPath, "Path to config JSON")

	// the config path decides the base layer, so it is parsed first
	pre := flag.NewFlagSet("visubase", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	prePath := pre.String("config", jsonPath, "")
	_ = pre.Parse(filterConfigArgs(args))

	cfg := Resolve(*prePath)

	port := fs.String("port", cfg.Port, "HTTP port")
	driver := fs.String("state-driver", cfg.StateDriver, "State driver (file/redis)")
	dir := fs.String("state-dir", cfg.StateDir, "State folder (if state-driver=file)")
	redisAddr := fs.String("redis-addr", cfg.RedisAddr, "Redis address (if state-driver=redis)")
	schemaName := fs.String("schema-name", cfg.SchemaName, "Name the schema is synced under")
	backend := fs.String("backend", cfg.Backend, "Backend kind (supabase/postgres)")
	url := fs.String("backend-url", cfg.BackendURL, "Backend URL or Postgres connection string")
	key := fs.String("backend-key", cfg.BackendKey, "Backend key (anon/service key or DB password)")
	types := fs.String("types-dir", cfg.TypesDir, "Extra column type catalogs")
	origins := fs.String("cors-origins", strings.Join(cfg.CORSOrigins, ","), "Allowed CORS origins, comma separated")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.StateDriver = strings.TrimSpace(*driver)
	cfg.StateDir = strings.TrimSpace(*dir)
	cfg.RedisAddr = strings.TrimSpace(*redisAddr)
	cfg.SchemaName = strings.TrimSpace(*schemaName)
	cfg.Backend = strings.TrimSpace(*backend)
	cfg.BackendURL = strings.TrimSpace(*url)
	cfg.BackendKey = strings.TrimSpace(*key)
	cfg.TypesDir = strings.TrimSpace(*types)
	cfg.CORSOrigins = splitList(*origins)

	return cfg, cfg.Validate()
}

// filterConfigArgs keeps only -config/--config so the pre-pass does not trip
// over flags it does not define.
func filterConfigArgs(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		switch {
		case strings.HasPrefix(name, "config="):
			out = append(out, a)
		case name == "config" && i+1 < len(args):
			out = append(out, a, args[i+1])
			i++
		}
	}
	return out
}
