package backend

import (
	"context"
	"errors"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/log"
	"spendwise/internal/remote"
	"spendwise/internal/remote/google"
	"spendwise/internal/remote/memory"
	"spendwise/internal/remote/webapp"
	"spendwise/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// WithRelay connects to AMQP when configured. Commands that never
	// publish leave it off.
	WithRelay bool
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create opens the store, the remote client and, if enabled, the AMQP relay.
// On error everything opened so far is closed.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}
	res := &Result{Store: store}
	closers := []func() error{store.Close}

	res.Remote, err = f.createRemote(ctx, config)
	if err != nil {
		store.Close()
		return nil, err
	}

	if f.WithRelay && config.AMQPURL != "" {
		relay, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("connect AMQP relay: %w", err)
		}
		res.Relay = relay
		closers = append(closers, relay.Close)
		f.logger.InfoContext(ctx, "Initialized AMQP relay",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createStore(config Config) (Store, error) {
	switch config.State {
	case SQLiteState:
		s, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return s, nil
	case MemoryState:
		f.logger.Info("Initialized memory store")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", config.State)
	}
}

func (f *DefaultFactory) createRemote(ctx context.Context, config Config) (remote.Client, error) {
	switch config.Sync {
	case WebAppSync:
		c, err := webapp.New(config.WebAppURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web app client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized web app sync")
		return c, nil
	case SheetsSync:
		c, err := google.New(ctx, google.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
			OAuthClientJSON: config.GoogleOAuthClientJSON,
			OAuthClientFile: config.GoogleOAuthClientFile,
			OAuthTokenFile:  config.GoogleOAuthTokenFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets sync", "spreadsheet_id", config.GoogleSpreadsheetID)
		return c, nil
	case MemorySync:
		return memory.New(), nil
	default:
		return remote.Nop{}, nil
	}
}
