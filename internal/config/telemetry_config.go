package config

type TelemetryConfig interface {
	GetOTLPEndpoint() string
	GetOTLPInsecure() bool
	GetServiceName() string
}

type Telemetry struct {
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_INSECURE"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"go-org-server"`
}

var _ TelemetryConfig = Telemetry{}

func (t Telemetry) GetOTLPEndpoint() string {
	return t.OTLPEndpoint
}

func (t Telemetry) GetOTLPInsecure() bool {
	return t.OTLPInsecure
}

func (t Telemetry) GetServiceName() string {
	return t.ServiceName
}
