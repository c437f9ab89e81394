package backend

import (
	"fmt"

	"settle/internal/config"
	"settle/internal/sheets/google"
)

// GoogleOptions extracts the Sheets client options from the app config.
func GoogleOptions(appConfig *config.Config) google.Options {
	return google.Options{
		SpreadsheetID:      appConfig.GoogleSpreadsheetID,
		PeriodPrefix:       appConfig.GooglePeriodPrefix,
		HandlesSheet:       appConfig.GoogleHandlesSheet,
		Concurrency:        appConfig.GoogleFetchConcurrency,
		APIKey:             appConfig.GoogleAPIKey,
		ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		ServiceAccountFile: appConfig.GoogleServiceAccountFile,
		OAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		OAuthClientFile:    appConfig.GoogleOAuthClientFile,
		OAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
		OAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
	}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		Google:        GoogleOptions(appConfig),
		DataDirectory: appConfig.DataDirectory,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.Google.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		hasKey := c.Google.APIKey != ""
		hasSA := c.Google.ServiceAccountJSON != "" || c.Google.ServiceAccountFile != ""
		hasOAuth := (c.Google.OAuthClientJSON != "" || c.Google.OAuthClientFile != "") &&
			(c.Google.OAuthTokenJSON != "" || c.Google.OAuthTokenFile != "")
		if !hasKey && !hasSA && !hasOAuth {
			return fmt.Errorf("sheets backend needs an API key, a service account or an OAuth client and token")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
}
