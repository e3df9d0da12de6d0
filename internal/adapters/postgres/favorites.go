package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"stayscout/internal/ports"
)

// FavoriteStore persists saved listings, keyed by user-chosen list name.
// Implements ports.FavoriteStore.

func (db *DB) Add(ctx context.Context, listName, location string, listing map[string]any) (int64, error) {
	payload, err := json.Marshal(listing)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.Pool.QueryRow(ctx, `
        INSERT INTO favorites (list_name, location, listing_data)
        VALUES ($1, $2, $3)
        RETURNING id
    `, listName, location, payload).Scan(&id)
	return id, err
}

// List returns favorites in one list, or every favorite when listName is
// empty.
func (db *DB) List(ctx context.Context, listName string) ([]ports.Favorite, error) {
	query := `
        SELECT id, list_name, location, listing_data, created_at, updated_at
        FROM favorites
        WHERE list_name = $1
        ORDER BY created_at DESC
    `
	args := []any{listName}
	if listName == "" {
		query = `
        SELECT id, list_name, location, listing_data, created_at, updated_at
        FROM favorites
        ORDER BY created_at DESC
    `
		args = nil
	}
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.Favorite
	for rows.Next() {
		var f ports.Favorite
		var payload []byte
		if err := rows.Scan(&f.ID, &f.ListName, &f.Location, &payload, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &f.ListingData); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (db *DB) ListNames(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT DISTINCT list_name FROM favorites ORDER BY list_name
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (db *DB) RenameList(ctx context.Context, oldName, newName string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE favorites SET list_name = $2, updated_at = now() WHERE list_name = $1
    `, oldName, newName)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM favorites WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Get fetches a single favorite by id.
func (db *DB) Get(ctx context.Context, id int64) (ports.Favorite, bool, error) {
	var f ports.Favorite
	var payload []byte
	err := db.Pool.QueryRow(ctx, `
        SELECT id, list_name, location, listing_data, created_at, updated_at
        FROM favorites WHERE id = $1
    `, id).Scan(&f.ID, &f.ListName, &f.Location, &payload, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return f, false, nil
	}
	if err != nil {
		return f, false, err
	}
	if err := json.Unmarshal(payload, &f.ListingData); err != nil {
		return f, false, err
	}
	return f, true, nil
}
