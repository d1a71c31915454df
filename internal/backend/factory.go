package backend

import (
	"context"
	"errors"
	"fmt"

	"rtadmin/internal/adapters"
	"rtadmin/internal/amqp"
	"rtadmin/internal/devapi"
	applog "rtadmin/internal/log"
	"rtadmin/internal/rtapi"
	"rtadmin/internal/storage"
)

// embeddedBaseURL is never dialed; requests go through HandlerTransport.
const embeddedBaseURL = "http://embedded.local/api"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case RemoteBackend:
		result, err = f.createRemoteBackend(config)
	case EmbeddedBackend:
		result, err = f.createEmbeddedBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(result, config)
	return result, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	api, err := rtapi.New(config.APIURL,
		rtapi.WithTimeout(config.APITimeout),
		rtapi.WithLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RT API client: %w", err)
	}

	f.logger.Info("Initialized remote backend",
		applog.FieldURL, api.BaseURL(),
		"storage_url", config.StorageURL)

	return &BackendResult{
		API:        api,
		StorageURL: config.StorageURL,
	}, nil
}

func (f *DefaultFactory) createEmbeddedBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	srv := devapi.New(repo, config.StorageDir, f.logger)
	api, err := rtapi.New(embeddedBaseURL,
		rtapi.WithTransport(adapters.NewHandlerTransport(srv)),
		rtapi.WithTimeout(config.APITimeout),
		rtapi.WithLogger(f.logger))
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize embedded API client: %w", err)
	}

	f.logger.Info("Initialized embedded backend",
		"db_path", config.SQLiteDBPath,
		"storage_dir", config.StorageDir)

	return &BackendResult{
		API:            api,
		StorageHandler: srv,
		StorageURL:     "/storage",
		Cleanup:        repo.Close,
	}, nil
}

// attachPublisher connects to AMQP when configured. A broker that is down
// at startup only disables mutation events.
func (f *DefaultFactory) attachPublisher(result *BackendResult, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without mutation events",
			applog.FieldError, err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Publisher = client
	previous := result.Cleanup
	result.Cleanup = func() error {
		var errs []error
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
		if previous != nil {
			if err := previous(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
