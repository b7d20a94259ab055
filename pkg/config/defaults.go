package config

const (
	defaultStorageDriver = "sqlite"

	defaultMode = "direct"

	defaultSyncTimeoutSeconds = 300

	defaultIntercomBaseURL = "https://api.intercom.io"

	defaultFetchMaxTotal      = 500
	defaultFetchPageSize      = 150
	defaultFetchPageDelayMS   = 500
	defaultFetchDetailWorkers = 4

	defaultAPIListen = ":8484"

	defaultEventBrokers = "localhost:9092"
	defaultEventTopic   = "spool.archive.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Backend: BackendConfig{
			Mode:               defaultMode,
			SyncTimeoutSeconds: defaultSyncTimeoutSeconds,
		},
		Intercom: IntercomConfig{
			BaseURL: defaultIntercomBaseURL,
		},
		Fetch: FetchConfig{
			MaxTotal:      defaultFetchMaxTotal,
			PageSize:      defaultFetchPageSize,
			PageDelayMS:   defaultFetchPageDelayMS,
			DetailWorkers: defaultFetchDetailWorkers,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Brokers: defaultEventBrokers,
			Topic:   defaultEventTopic,
		},
	}
}
