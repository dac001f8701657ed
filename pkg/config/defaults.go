package config

// Storage driver names accepted by storage.driver.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Event stream providers accepted by eventstream.provider.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

const (
	defaultBaseURL       = "http://localhost:8080/api"
	defaultClientTimeout = "30s"
	defaultTopK          = 4

	defaultUnrecognized = "drop"
	defaultReadBuffer   = 4096

	defaultProxyListen = ":8081"
	defaultUpstream    = "http://localhost:8080"

	defaultAPIListen = ":8082"

	defaultStorageDriver = StorageSQLite

	defaultEventStreamProvider = EventStreamNop
	defaultEventStreamTopic    = "algoqa.answers"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
//
// storage.sqlite_path is left empty; commands resolve it to algoqa.db inside
// the .algoqa/ directory.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultClientTimeout,
			TopK:    defaultTopK,
		},
		Decoder: DecoderConfig{
			Unrecognized: defaultUnrecognized,
			ReadBuffer:   defaultReadBuffer,
		},
		Proxy: ProxyConfig{
			Listen:   defaultProxyListen,
			Upstream: defaultUpstream,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
