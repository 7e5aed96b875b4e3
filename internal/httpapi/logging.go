package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer; nil logs nothing.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return zlog
}

// defaultRequestLevel applies to requests without an override.
var defaultRequestLevel = parseRequestLevel(os.Getenv("SIGHTSPEAK_HTTP_LOG"), zerolog.InfoLevel)

// parseRequestLevel maps a level name to a zerolog level; "off" disables
// request logs and "1" is shorthand for debug. Unknown names yield fallback.
func parseRequestLevel(s string, fallback zerolog.Level) zerolog.Level {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "":
		return fallback
	case "off", "none":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return fallback
	}
	return lvl
}

// SetDefaultLogLevel changes the level used when a request has no override.
func SetDefaultLogLevel(s string) { defaultRequestLevel = parseRequestLevel(s, zerolog.InfoLevel) }

// requestLogLevel honours ?log= and X-Log-Level, in that order.
func requestLogLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseRequestLevel(v, defaultRequestLevel)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseRequestLevel(v, defaultRequestLevel)
	}
	return defaultRequestLevel
}

// requestLogger is the HTTP logger at the request's level.
func requestLogger(r *http.Request) zerolog.Logger {
	return logger().Level(requestLogLevel(r))
}
