package backend

import (
	"errors"
	"fmt"
	"strings"

	"rtadmin/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %q (want one of %s)",
			appConfig.DataBackend, strings.Join(GetBackendTypeStrings(), ", "))
	}

	return Config{
		Type: backendType,

		APIURL:     appConfig.APIURL,
		StorageURL: appConfig.StorageURL,
		APITimeout: appConfig.APITimeout,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		StorageDir:   appConfig.DevAPIStorageDir,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case RemoteBackend:
		if c.APIURL == "" {
			return errors.New("RT API URL is required for remote backend")
		}
	case EmbeddedBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for embedded backend")
		}
		if c.StorageDir == "" {
			return errors.New("storage directory is required for embedded backend")
		}
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{RemoteBackend.String(), EmbeddedBackend.String()}
}
