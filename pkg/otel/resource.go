package otel

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ServiceName identifies busstop in telemetry backends.
const ServiceName = "busstop"

// Version is set at build time via -ldflags
// e.g., go build -ldflags="-X busstop/pkg/otel.Version=1.2.3"
var Version = "dev"

// NewResource describes this process for both the trace and metric providers.
// OTEL_SERVICE_NAME and OTEL_RESOURCE_ATTRIBUTES still apply on top.
func NewResource() (*resource.Resource, error) {
	return resource.New(context.Background(),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(Version),
			semconv.ServiceInstanceID(instanceID()),
			semconv.DeploymentEnvironment(getEnv("OTEL_DEPLOYMENT_ENVIRONMENT", "local")),
			semconv.ProcessRuntimeName("go"),
			semconv.ProcessRuntimeVersion(runtime.Version()),
		),
	)
}

// instanceID prefers OTEL_SERVICE_INSTANCE_ID, then the hostname, then the pid.
func instanceID() string {
	if id := os.Getenv("OTEL_SERVICE_INSTANCE_ID"); id != "" {
		return id
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("%s-%d", ServiceName, os.Getpid())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
