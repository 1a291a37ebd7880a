package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mbolis/pozo-survey/form"
	"github.com/mbolis/pozo-survey/submit"
)

type Config struct {
	Addr           string
	BackendURL     string
	BackendToken   string
	BackendTimeout time.Duration
	AuthWait       time.Duration
	SubmitWait     time.Duration
	DBUrl          string
	SessionSecret  string
	SessionTTL     time.Duration
	SubmitPolicy   submit.Policy
	CatalogMode    form.CatalogMode
	Debug          bool
}

// ParseFlags reads the command line. Every flag defaults to its POZOS_*
// environment variable, which may also come from a .env file.
func ParseFlags() (Config, error) {
	_ = godotenv.Load() // a missing .env is fine
	return Parse(os.Args[1:])
}

func Parse(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("pozo-survey", flag.ContinueOnError)

	var host string
	fs.StringVar(&host, "host", env("POZOS_HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("POZOS_PORT", 8080), "listen port number")
	fs.StringVar(&cfg.BackendURL, "backend-url", env("POZOS_BACKEND_URL", "http://192.168.128.15:5000"), "base URL of the ingestion backend")
	fs.StringVar(&cfg.BackendToken, "backend-token", env("POZOS_BACKEND_TOKEN", ""), "bearer token sent to the backend, if any")
	fs.DurationVar(&cfg.BackendTimeout, "backend-timeout", envDuration("POZOS_BACKEND_TIMEOUT", 0), "timeout of backend requests (0 waits forever)")
	fs.DurationVar(&cfg.AuthWait, "auth-wait", envDuration("POZOS_AUTH_WAIT", 2*time.Second), "how long a page load waits for the session check before showing the waiting page")
	fs.DurationVar(&cfg.SubmitWait, "submit-wait", envDuration("POZOS_SUBMIT_WAIT", 25*time.Second), "how long a waiting submit waits for the outcome before answering with the ticket")
	fs.StringVar(&cfg.DBUrl, "db-url", env("POZOS_DB_URL", "pozos.sqlite"), "path to the SQLite3 submission journal")
	fs.StringVar(&cfg.SessionSecret, "session-secret", env("POZOS_SESSION_SECRET", ""), "secret key signing form session cookies")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", envDuration("POZOS_SESSION_TTL", 12*time.Hour), "lifetime of a form session")
	var policy string
	fs.StringVar(&policy, "submit-policy", env("POZOS_SUBMIT_POLICY", string(submit.Queue)), "repeated submits of a session: queue, reject or coalesce")
	var mode string
	fs.StringVar(&mode, "catalog", env("POZOS_CATALOG", string(form.Advisory)), "classification fields: advisory or strict")
	fs.BoolVar(&cfg.Debug, "debug", os.Getenv("POZOS_DEBUG") != "", "log at DEBUG level")

	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))

	if cfg.SubmitPolicy, err = submit.ParsePolicy(policy); err != nil {
		return
	}
	if cfg.CatalogMode, err = form.ParseCatalogMode(mode); err != nil {
		return
	}
	if cfg.BackendURL == "" {
		err = errors.New("missing parameter -backend-url")
		return
	}
	if cfg.SessionSecret == "" {
		err = errors.New("missing parameter -session-secret")
	}
	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint) uint {
	if n, err := strconv.ParseUint(os.Getenv(key), 10, 0); err == nil {
		return uint(n)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
