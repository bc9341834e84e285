package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"muhuratai/pkg/localdb"
)

const (
	defaultCatalogLimit = 50
	maxCatalogLimit     = 200
)

// Public catalog tables. Users, readings, transactions and payment provider
// settings stay private to the service.
var readableTables = map[string]bool{
	"theme_settings":   true,
	"image_assets":     true,
	"services":         true,
	"config":           true,
	"payment_methods":  true,
	"store_items":      true,
	"gemstones":        true,
	"featured_content": true,
	"report_formats":   true,
}

// Tables a signed-in user may append to. user_id is always the caller.
var writableTables = map[string]bool{
	"feedback":     true,
	"mood_entries": true,
	"logs":         true,
}

// CatalogPage is a slice of one embedded-store table.
type CatalogPage struct {
	Table  string        `json:"table"`
	Rows   []localdb.Row `json:"rows"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Catalog lists rows of a public embedded-store table.
func (a *App) Catalog(ctx context.Context, table string, limit, offset int) (CatalogPage, error) {
	if a.catalog == nil {
		return CatalogPage{}, ErrUnavailable
	}
	table = strings.TrimSpace(table)
	if !readableTables[table] {
		return CatalogPage{}, ErrTableNotFound
	}
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	if limit > maxCatalogLimit {
		limit = maxCatalogLimit
	}
	if offset < 0 {
		offset = 0
	}
	total, err := a.catalog.Count(ctx, table)
	if err != nil {
		return CatalogPage{}, catalogError(err)
	}
	rows, err := a.catalog.Rows(ctx, table, limit, offset)
	if err != nil {
		return CatalogPage{}, catalogError(err)
	}
	return CatalogPage{Table: table, Rows: rows, Total: total, Limit: limit, Offset: offset}, nil
}

// AddCatalogRow appends a caller-owned row to a writable table and returns its id.
func (a *App) AddCatalogRow(ctx context.Context, caller Caller, table string, row localdb.Row) (string, error) {
	if a.catalog == nil {
		return "", ErrUnavailable
	}
	if caller.UserID == "" {
		return "", ErrForbidden
	}
	table = strings.TrimSpace(table)
	if !writableTables[table] {
		if readableTables[table] {
			return "", ErrForbidden
		}
		return "", ErrTableNotFound
	}
	if len(row) == 0 {
		return "", validationError("row is empty")
	}
	clean := make(localdb.Row, len(row)+2)
	for k, v := range row {
		if k == "id" || k == "user_id" || k == "created_at" {
			continue
		}
		clean[k] = v
	}
	if table != "logs" {
		clean["user_id"] = caller.UserID
	}
	clean["created_at"] = a.now().UTC()
	id, err := a.catalog.Insert(ctx, table, clean)
	if err != nil {
		if id != "" {
			// Row is live; only the snapshot write failed.
			a.logger.Error("catalog snapshot failed", "table", table, "id", id, "err", err)
			return id, nil
		}
		return "", catalogError(err)
	}
	return id, nil
}

func catalogError(err error) error {
	switch {
	case errors.Is(err, localdb.ErrUnknownTable):
		return ErrTableNotFound
	case errors.Is(err, localdb.ErrUnknownColumn), errors.Is(err, localdb.ErrInvalidValue):
		return validationError("%v", err)
	default:
		return fmt.Errorf("catalog: %w", err)
	}
}
