package config

// Config aggregates everything the portal needs at startup.
type Config interface {
	EnvConfig
	PolicyConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBackendBaseURL() string
	GetDataFolder() string
	GetRoutesFile() string
	GetSessionStore() string
}

type PolicyConfig interface {
	// GetAllowSkipPasswordChange controls whether the forced first-login
	// password change offers a skip.
	GetAllowSkipPasswordChange() bool
}

type mainConfig struct {
	EnvVars
	Policy
}

func New() Config {
	return mainConfig{}
}
