package backend

import (
	"context"
	"net/http"
	"time"

	"rtadmin/internal/rtapi"
	"rtadmin/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is everything the console needs from a data backend.
type BackendResult struct {
	API *rtapi.Client
	// Publisher is nil when AMQP is disabled.
	Publisher services.Publisher
	// StorageHandler serves KTP photos under /storage/ for the embedded
	// backend; nil when photos are served by the remote host.
	StorageHandler http.Handler
	StorageURL     string
	Cleanup        CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Remote REST backend
	APIURL     string
	StorageURL string
	APITimeout time.Duration

	// Embedded dev backend
	SQLiteDBPath string
	StorageDir   string

	// Mutation events (optional for both)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	RemoteBackend   BackendType = "remote"
	EmbeddedBackend BackendType = "embedded"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RemoteBackend, EmbeddedBackend:
		return true
	default:
		return false
	}
}
