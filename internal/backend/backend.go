// Package backend builds the record exporter selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"entrate/internal/config"
	"entrate/internal/sheets"
	gsheet "entrate/internal/sheets/google"
	"entrate/internal/sheets/memory"
)

// BackendType represents the type of export backend
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds configuration for exporter creation
type Config struct {
	Type BackendType

	// Google Sheets specific
	Sheets gsheet.Config
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.ExportBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.ExportBackend)
	}

	return Config{
		Type: backendType,
		Sheets: gsheet.Config{
			SpreadsheetID:      appConfig.GoogleSpreadsheetID,
			SheetName:          appConfig.GoogleSheetName,
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			ServiceAccountFile: appConfig.GoogleServiceAccountFile,
		},
	}, nil
}

// NewExporter creates the exporter for config.Type.
func NewExporter(ctx context.Context, config Config, logger *slog.Logger) (sheets.RecordExporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Type {
	case SheetsBackend:
		cli, err := gsheet.New(ctx, config.Sheets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		logger.Info("Initialized Google Sheets exporter", "sheet", config.Sheets.SheetName)
		return cli, nil
	case MemoryBackend:
		logger.Info("Initialized memory exporter")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
