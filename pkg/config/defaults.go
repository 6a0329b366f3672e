package config

// Event stream providers.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

const (
	defaultClientEndpoint = "http://localhost:3000/api/chat"
	defaultResponseNode   = "model"
	defaultClientTimeout  = "5m"

	defaultNotificationTTL = "5s"

	defaultUpstream    = "http://localhost:3000"
	defaultProxyListen = ":8080"
	defaultAPIListen   = ":8081"

	defaultStorageProvider = "sqlite"

	defaultEventStreamProvider = EventStreamNop
	defaultKafkaTopic          = "streamflow.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
//
// The SQLite path is left empty and resolved against the .streamflow/
// directory at startup.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Endpoint:     defaultClientEndpoint,
			ResponseNode: defaultResponseNode,
			Timeout:      defaultClientTimeout,
		},
		Notifications: NotificationsConfig{
			TTL: defaultNotificationTTL,
		},
		Proxy: ProxyConfig{
			Upstream: defaultUpstream,
			Listen:   defaultProxyListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		EventStream: EventStreamConfig{
			Provider:   defaultEventStreamProvider,
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
