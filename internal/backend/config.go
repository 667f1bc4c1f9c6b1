package backend

import (
	"fmt"

	"spendwise/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		State:        StateType(appConfig.StateBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,

		Sync:                     SyncType(appConfig.SyncBackend),
		WebAppURL:                appConfig.SyncWebAppURL,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.State.IsValid() {
		return fmt.Errorf("invalid state backend: %s", c.State)
	}
	if !c.Sync.IsValid() {
		return fmt.Errorf("invalid sync backend: %s", c.Sync)
	}
	if c.State == SQLiteState && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	switch c.Sync {
	case WebAppSync:
		if c.WebAppURL == "" {
			return fmt.Errorf("web app URL is required for webapp sync")
		}
	case SheetsSync:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets sync")
		}
	}
	return nil
}
