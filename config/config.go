// Package config loads the server's static configuration once at
// startup: flags take precedence, then a .env file loaded via
// github.com/joho/godotenv, then the bare process environment. An
// optional fsnotify watch on the .env file does not hot-reload
// anything — the reactor's per-worker state makes live reconfiguration
// unsafe — it only logs that a restart is needed.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the bootstrap layer needs to start the
// worker pool and the routes/metrics it wires them to.
type Config struct {
	Port int

	Workers int

	RequestTimeout   time.Duration
	KeepAliveTimeout time.Duration

	LocalPoolSize    int
	FallbackPoolSize int

	MetricsAddr string

	RepeatedByteGuard bool

	EnvFile string
}

// Load builds a Config from flags, a .env file (if present), and the
// process environment, in that precedence order (flags win).
func Load(args []string) (*Config, error) {
	envFile := firstNonFlagValue(args, "-env-file", "--env-file", ".env")
	_ = godotenv.Overload(envFile) // a missing .env file is not an error

	fs := flag.NewFlagSet("bff", flag.ContinueOnError)
	cfg := &Config{}
	fs.IntVar(&cfg.Port, "port", envInt("BFF_PORT", 8080), "listening port (SO_REUSEPORT across workers)")
	fs.IntVar(&cfg.Workers, "workers", envInt("BFF_WORKERS", 0), "worker count (0 = GOMAXPROCS)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", envDuration("BFF_REQUEST_TIMEOUT", 5*time.Second), "idle deadline for an unparsed request")
	fs.DurationVar(&cfg.KeepAliveTimeout, "keepalive-timeout", envDuration("BFF_KEEPALIVE_TIMEOUT", 10*time.Second), "idle deadline for a persistent connection awaiting its next request")
	fs.IntVar(&cfg.LocalPoolSize, "local-pool-size", envInt("BFF_LOCAL_POOL_SIZE", 10000), "per-worker connection record pool size")
	fs.IntVar(&cfg.FallbackPoolSize, "fallback-pool-size", envInt("BFF_FALLBACK_POOL_SIZE", 20000), "shared overflow connection record pool size")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envString("BFF_METRICS_ADDR", ":9090"), "address the /metrics endpoint listens on; empty disables it")
	fs.BoolVar(&cfg.RepeatedByteGuard, "repeated-byte-guard", envBool("BFF_REPEATED_BYTE_GUARD", false), "reject requests containing a long run of one repeated byte")
	fs.StringVar(&cfg.EnvFile, "env-file", envFile, "optional dotenv file merged into the process environment before flags are resolved")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// firstNonFlagValue pre-scans args for a flag's value before the real
// FlagSet runs, because godotenv must populate the environment before
// the real flag defaults (which read that environment) are evaluated.
func firstNonFlagValue(args []string, long, short, def string) string {
	for i, a := range args {
		if (a == long || a == short) && i+1 < len(args) {
			return args[i+1]
		}
	}
	return def
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
