package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/transer/vortice/pkg/storage"
)

// Put inserts a tenant-owned record. A tenant-bound writer always owns the
// row it writes; the row-level-security policy's WITH CHECK clause backs
// this up in the database, so even a bypassed caller cannot plant rows in
// another office.
func (s *Store) Put(ctx context.Context, rec storage.Record) error {
	if t, ok := storage.TenantFromContext(ctx); ok && !t.GlobalAdmin && t.ID != uuid.Nil {
		rec.TenantID = t.ID
	}
	return s.WithTenant(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO warehouse_records (id, tenant_id, payload)
			VALUES ($1, $2, $3)
		`, rec.ID, rec.TenantID, rec.Payload)
		if err != nil {
			if isDuplicateKey(err) {
				return storage.ErrConflict
			}
			if isRLSViolation(err) {
				return storage.ErrDenied
			}
			return fmt.Errorf("inserting record: %w", err)
		}
		return nil
	})
}

// Get retrieves a record by ID. A row outside the bound tenant is
// hidden by the policy and reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (storage.Record, error) {
	var rec storage.Record
	err := s.WithTenant(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, tenant_id, payload FROM warehouse_records WHERE id = $1
		`, id)
		if err := row.Scan(&rec.ID, &rec.TenantID, &rec.Payload); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("scanning record: %w", err)
		}
		return nil
	})
	if err != nil {
		return storage.Record{}, err
	}
	return rec, nil
}

// List returns all records visible under the bound tenant.
func (s *Store) List(ctx context.Context) ([]storage.Record, error) {
	var out []storage.Record
	err := s.WithTenant(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, payload FROM warehouse_records ORDER BY id
		`)
		if err != nil {
			return fmt.Errorf("querying records: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rec storage.Record
			if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Payload); err != nil {
				return fmt.Errorf("scanning record: %w", err)
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
