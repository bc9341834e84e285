package localdb

import (
	"context"
	"fmt"

	"muhuratai/pkg/auth"
)

// BootstrapResult reports what a bootstrap pass changed.
type BootstrapResult struct {
	CreatedTables []string
	AddedColumns  []string
	SeededTables  []string
}

// Changed reports whether the pass modified the store.
func (r BootstrapResult) Changed() bool {
	return len(r.CreatedTables)+len(r.AddedColumns)+len(r.SeededTables) > 0
}

// Bootstrap brings the store in line with the declared schema: missing tables
// are created, missing columns are appended, and empty tables are reseeded.
// Columns are never dropped or retyped. A snapshot is persisted only when the
// pass changed something, so repeated runs are no-ops.
func (s *Store) Bootstrap(ctx context.Context) (BootstrapResult, error) {
	var res BootstrapResult
	for _, t := range s.tables {
		existing, err := s.existingColumns(ctx, t.Name)
		if err != nil {
			return res, err
		}
		if len(existing) == 0 {
			if _, err := s.db.ExecContext(ctx, t.createSQL()); err != nil {
				return res, fmt.Errorf("create table %s: %w", t.Name, err)
			}
			res.CreatedTables = append(res.CreatedTables, t.Name)
		} else {
			have := make(map[string]bool, len(existing))
			for _, c := range existing {
				have[c] = true
			}
			for _, c := range t.Columns {
				if have[c.Name] {
					continue
				}
				stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.Name, c.Name, c.Type.sqlType())
				if _, err := s.db.ExecContext(ctx, stmt); err != nil {
					return res, fmt.Errorf("add column %s.%s: %w", t.Name, c.Name, err)
				}
				res.AddedColumns = append(res.AddedColumns, t.Name+"."+c.Name)
			}
		}

		seeds := s.seeds[t.Name]
		if len(seeds) == 0 {
			continue
		}
		n, err := s.Count(ctx, t.Name)
		if err != nil {
			return res, err
		}
		if n > 0 {
			continue
		}
		if err := s.seedTable(ctx, t, seeds); err != nil {
			return res, err
		}
		res.SeededTables = append(res.SeededTables, t.Name)
	}

	if !res.Changed() {
		s.logger.Debug("bootstrap: store up to date")
		return res, nil
	}
	s.logger.Info("bootstrap applied",
		"created_tables", len(res.CreatedTables),
		"added_columns", len(res.AddedColumns),
		"seeded_tables", len(res.SeededTables),
	)
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Store) seedTable(ctx context.Context, t Table, seeds []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed %s: %w", t.Name, err)
	}
	defer tx.Rollback()
	for _, seed := range seeds {
		row, err := s.prepareSeed(t, seed)
		if err != nil {
			return err
		}
		if _, err := insertRow(ctx, tx, t, row); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed %s: %w", t.Name, err)
	}
	return nil
}

func (s *Store) prepareSeed(t Table, seed Row) (Row, error) {
	if s.seedPassword == "" {
		return seed, nil
	}
	if _, ok := t.column("password_hash"); !ok {
		return seed, nil
	}
	if v, _ := seed["password_hash"].(string); v != "" {
		return seed, nil
	}
	hash, err := auth.HashPassword(s.seedPassword)
	if err != nil {
		return nil, err
	}
	row := make(Row, len(seed)+1)
	for k, v := range seed {
		row[k] = v
	}
	row["password_hash"] = hash
	return row, nil
}
