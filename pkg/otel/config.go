package otel

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Protocol represents OTLP transport protocol
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

// SignalType represents the OTEL signal type
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
)

// ExporterConfig holds parsed OTLP exporter configuration for a signal
type ExporterConfig struct {
	Endpoint    string
	Protocol    Protocol
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
}

// IsTracingEnabled reports whether OTEL_TRACING_ENABLED is set to a true value.
func IsTracingEnabled() bool {
	return isTrue(os.Getenv("OTEL_TRACING_ENABLED"))
}

// IsMetricsEnabled reports whether OTEL_METRICS_ENABLED is set to a true value.
func IsMetricsEnabled() bool {
	return isTrue(os.Getenv("OTEL_METRICS_ENABLED"))
}

// GetExporterConfig resolves the exporter configuration for one signal from
// the standard OTEL_EXPORTER_OTLP_* variables. Signal-specific variables
// (e.g. OTEL_EXPORTER_OTLP_TRACES_ENDPOINT) win over the base ones.
func GetExporterConfig(signal SignalType) ExporterConfig {
	env := signalEnv{signal: signal, upper: strings.ToUpper(string(signal))}

	protocol := parseProtocol(env.lookup("PROTOCOL", "http/protobuf"))
	endpoint := env.endpoint(protocol)

	insecure := strings.HasPrefix(endpoint, "http://")
	if s := env.lookup("INSECURE", ""); s != "" {
		insecure = isTrue(s)
	}

	return ExporterConfig{
		Endpoint:    endpoint,
		Protocol:    protocol,
		Headers:     parseHeaders(env.lookup("HEADERS", "")),
		Timeout:     parseDuration(env.lookup("TIMEOUT", ""), 10*time.Second),
		Insecure:    insecure,
		Compression: env.lookup("COMPRESSION", ""),
	}
}

type signalEnv struct {
	signal SignalType
	upper  string
}

// lookup checks OTEL_EXPORTER_OTLP_<SIGNAL>_<key>, then OTEL_EXPORTER_OTLP_<key>.
func (e signalEnv) lookup(key, def string) string {
	if v := os.Getenv("OTEL_EXPORTER_OTLP_" + e.upper + "_" + key); v != "" {
		return v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_" + key); v != "" {
		return v
	}
	return def
}

func (e signalEnv) endpoint(protocol Protocol) string {
	// Signal-specific endpoints are used as-is.
	if v := os.Getenv("OTEL_EXPORTER_OTLP_" + e.upper + "_ENDPOINT"); v != "" {
		return normalizeEndpoint(v, protocol)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		return appendSignalPath(normalizeEndpoint(v, protocol), e.signal, protocol)
	}
	if protocol == ProtocolGRPC {
		return "localhost:4317"
	}
	return "http://localhost:4318/v1/" + string(e.signal)
}

func parseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "grpc":
		return ProtocolGRPC
	case "http/json":
		return ProtocolHTTPJSON
	default:
		return ProtocolHTTPProtobuf
	}
}

// normalizeEndpoint reduces gRPC endpoints to host:port and makes sure HTTP
// endpoints carry a scheme.
func normalizeEndpoint(endpoint string, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			endpoint = endpoint[:idx]
		}
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return endpoint
}

func appendSignalPath(endpoint string, signal SignalType, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		return endpoint
	}
	signalPath := "/v1/" + string(signal)

	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + signalPath
	}
	if strings.HasSuffix(u.Path, signalPath) {
		return endpoint
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	return u.String()
}

// parseHeaders parses "key1=value1,key2=value2". Values keep everything after
// the first '=' so base64 credentials survive.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(headerStr, ",") {
		pair = strings.TrimSpace(pair)
		if idx := strings.Index(pair, "="); idx > 0 {
			headers[strings.TrimSpace(pair[:idx])] = pair[idx+1:]
		}
	}
	return headers
}

// parseDuration accepts Go durations ("10s") and OTEL millisecond integers ("10000").
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
