// Package backend builds the storage, remote and relay collaborators the
// commands need from configuration.
package backend

import (
	"context"

	"spendwise/internal/amqp"
	"spendwise/internal/remote"
	"spendwise/internal/storage"
)

// Store is both the state store and the outbox. Both backends provide the
// pair so the CLI and the worker share one queue.
type Store interface {
	storage.StateStore
	storage.Outbox
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the collaborators created from a Config.
type Result struct {
	Store  Store
	Remote remote.Client
	// Relay is set when AMQP is configured.
	Relay   *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// StateType selects where AppState lives.
type StateType string

const (
	SQLiteState StateType = "sqlite"
	MemoryState StateType = "memory"
)

func (t StateType) IsValid() bool {
	return t == SQLiteState || t == MemoryState
}

// SyncType selects the remote adapter.
type SyncType string

const (
	NoSync     SyncType = "none"
	WebAppSync SyncType = "webapp"
	SheetsSync SyncType = "sheets"
	MemorySync SyncType = "memory"
)

func (t SyncType) IsValid() bool {
	switch t {
	case NoSync, WebAppSync, SheetsSync, MemorySync:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	State        StateType
	SQLiteDBPath string

	Sync                     SyncType
	WebAppURL                string
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}
