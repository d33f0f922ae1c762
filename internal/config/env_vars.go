package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar         = "PORT"
	appNameVar         = "APP_NAME"
	envVar             = "ENV"
	backendBaseURLVar  = "BACKEND_BASE_URL"
	dataFolderVar      = "DATA_FOLDER"
	routesFileVar      = "ROUTES_FILE"
	sessionStoreVar    = "SESSION_STORE"
	defaultBackendBase = "http://localhost:9000/api"
)

// Session store kinds accepted in SESSION_STORE.
const (
	SessionStoreFile   = "file"
	SessionStoreSQLite = "sqlite"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Canteen Portal")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetBackendBaseURL() string {
	return GetEnv(backendBaseURLVar, defaultBackendBase)
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(dataFolderVar, "")
}

// GetRoutesFile points at an optional YAML route table; empty means the
// built-in default table.
func (EnvVars) GetRoutesFile() string {
	return GetEnv(routesFileVar, "")
}

func (EnvVars) GetSessionStore() string {
	return GetEnv(sessionStoreVar, SessionStoreFile)
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
