package profiling

import (
	"log/slog"
	"os"
	"strings"

	"busstop/pkg/otel"

	"github.com/grafana/pyroscope-go"
)

// InitProfiling starts a Pyroscope profiler when PYROSCOPE_PROFILING_ENABLED
// is set. A failure to start is logged and profiling stays off; the session
// itself never depends on it.
func InitProfiling() (func(), error) {
	if !isTrue(os.Getenv("PYROSCOPE_PROFILING_ENABLED")) {
		slog.Debug("Pyroscope profiling is disabled")
		return func() {}, nil
	}

	config := Config()

	profiler, err := pyroscope.Start(config)
	if err != nil {
		slog.Warn("Failed to start Pyroscope profiler", "error", err)
		return func() {}, nil
	}

	slog.Debug("Pyroscope profiling started", "server", config.ServerAddress, "application", config.ApplicationName)

	return func() {
		if err := profiler.Stop(); err != nil {
			slog.Error("Error stopping Pyroscope profiler", "error", err)
		}
	}, nil
}

// Config builds the profiler configuration from PYROSCOPE_* variables.
func Config() pyroscope.Config {
	config := pyroscope.Config{
		ApplicationName: getEnv("PYROSCOPE_APPLICATION_NAME", otel.ServiceName),
		ServerAddress:   getEnv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040"),
		Tags: map[string]string{
			"service": otel.ServiceName,
			"version": otel.Version,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileGoroutines,
		},
	}

	user := os.Getenv("PYROSCOPE_BASIC_AUTH_USER")
	password := os.Getenv("PYROSCOPE_BASIC_AUTH_PASSWORD")
	if user != "" && password != "" {
		config.BasicAuthUser = user
		config.BasicAuthPassword = password
	}
	return config
}

// getEnv returns the value of an environment variable or a default value if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
