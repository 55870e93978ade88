package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/image-labeler/internal/selection"
)

// ListForSelection resolves the items a run targets: all items of the
// collection filtered through the selection config.
func (db *DB) ListForSelection(ctx context.Context, collectionID uuid.UUID, sel selection.Config) ([]Item, error) {
	items, err := db.ListItems(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	candidates := make([]uuid.UUID, len(items))
	byID := make(map[uuid.UUID]Item, len(items))
	for i, item := range items {
		candidates[i] = item.ID
		byID[item.ID] = item
	}

	selected, err := sel.Apply(candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to apply selection: %w", err)
	}

	out := make([]Item, 0, len(selected))
	for _, id := range selected {
		out = append(out, byID[id])
	}
	return out, nil
}

// ListItems retrieves all items of a collection in creation order.
func (db *DB) ListItems(ctx context.Context, collectionID uuid.UUID) ([]Item, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, collection_id, filename, storage_path, source_path, status, ground_truth, created_at
		 FROM items WHERE collection_id = $1 ORDER BY created_at`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.CollectionID, &item.Filename, &item.StoragePath,
			&item.SourcePath, &item.Status, &item.GroundTruth, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateItem inserts a new item record.
func (db *DB) CreateItem(ctx context.Context, item *Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO items (id, collection_id, filename, storage_path, source_path, status, ground_truth)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		item.ID, item.CollectionID, item.Filename, item.StoragePath, item.SourcePath, item.Status, item.GroundTruth,
	).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// FilenameExists reports whether a collection already contains an item with
// the given filename, for ingestion deduplication.
func (db *DB) FilenameExists(ctx context.Context, collectionID uuid.UUID, filename string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM items WHERE collection_id = $1 AND filename = $2)`,
		collectionID, filename,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check filename: %w", err)
	}
	return exists, nil
}

// SourcePathExists reports whether a collection already has an item ingested
// from the given source location. The discovery cursor buffer re-lists files
// near the cursor on every scan; this check keeps them from being ingested
// twice.
func (db *DB) SourcePathExists(ctx context.Context, collectionID uuid.UUID, sourcePath string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM items WHERE collection_id = $1 AND source_path = $2)`,
		collectionID, sourcePath,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source path: %w", err)
	}
	return exists, nil
}

// GetItem retrieves one item by ID. Returns nil without error when missing.
func (db *DB) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	var item Item
	err := db.pool.QueryRow(ctx,
		`SELECT id, collection_id, filename, storage_path, source_path, status, ground_truth, created_at
		 FROM items WHERE id = $1`,
		itemID,
	).Scan(&item.ID, &item.CollectionID, &item.Filename, &item.StoragePath,
		&item.SourcePath, &item.Status, &item.GroundTruth, &item.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}
