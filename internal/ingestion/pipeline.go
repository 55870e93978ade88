// Package ingestion copies discovered source files into managed storage and
// registers them as collection items. A source path already recorded in the
// collection is skipped outright, so re-listed files are not ingested twice.
// Filenames are unique per collection; collisions between distinct sources
// get a short random suffix instead of being skipped, because two different
// source files may legitimately share a name.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/storage"
)

// ItemCatalog is the item persistence the pipeline needs.
type ItemCatalog interface {
	FilenameExists(ctx context.Context, collectionID uuid.UUID, filename string) (bool, error)
	SourcePathExists(ctx context.Context, collectionID uuid.UUID, sourcePath string) (bool, error)
	CreateItem(ctx context.Context, item *db.Item) error
}

// Result summarizes one ingestion pass.
type Result struct {
	Ingested []db.Item
	// Skipped counts files whose source path was already ingested.
	Skipped int
	Failed  int
}

// Pipeline moves files from a source folder into a collection.
type Pipeline struct {
	store  storage.Store
	items  ItemCatalog
	logger *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(store storage.Store, items ItemCatalog, logger *slog.Logger) *Pipeline {
	return &Pipeline{store: store, items: items, logger: logger}
}

// Ingest copies each file into the collection's managed prefix and creates an
// item record. Files whose source path was already ingested into the
// collection are skipped, so a re-listed file never becomes a second item. A
// failing file is logged and counted; the pass continues with the rest.
func (p *Pipeline) Ingest(ctx context.Context, collectionID uuid.UUID, files []storage.FileInfo) (*Result, error) {
	result := &Result{}

	for _, file := range files {
		seen, err := p.items.SourcePathExists(ctx, collectionID, file.Path)
		if err != nil {
			p.logger.Warn("failed to check source path",
				"path", file.Path, "collection_id", collectionID, "error", err)
			result.Failed++
			continue
		}
		if seen {
			p.logger.Debug("source already ingested, skipping",
				"path", file.Path, "collection_id", collectionID)
			result.Skipped++
			continue
		}

		item, err := p.ingestOne(ctx, collectionID, file)
		if err != nil {
			p.logger.Warn("failed to ingest file",
				"path", file.Path, "collection_id", collectionID, "error", err)
			result.Failed++
			continue
		}
		result.Ingested = append(result.Ingested, *item)
	}

	return result, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, collectionID uuid.UUID, file storage.FileInfo) (*db.Item, error) {
	data, err := p.store.Download(ctx, file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to download source file: %w", err)
	}

	filename, err := p.uniqueFilename(ctx, collectionID, file.Name)
	if err != nil {
		return nil, err
	}

	managedPath := ManagedPath(collectionID, filename)
	if _, _, err := p.store.Upload(ctx, data, managedPath); err != nil {
		return nil, fmt.Errorf("failed to upload to managed storage: %w", err)
	}

	item := &db.Item{
		CollectionID: collectionID,
		Filename:     filename,
		StoragePath:  managedPath,
		SourcePath:   file.Path,
		Status:       "pending",
	}
	if err := p.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	p.logger.Info("ingested file", "filename", filename, "collection_id", collectionID)
	return item, nil
}

// uniqueFilename resolves a filename collision within the collection by
// inserting a short random suffix before the extension. Only distinct source
// files reach this point; re-reads of an already-ingested source are dropped
// before the rename.
func (p *Pipeline) uniqueFilename(ctx context.Context, collectionID uuid.UUID, name string) (string, error) {
	exists, err := p.items.FilenameExists(ctx, collectionID, name)
	if err != nil {
		return "", fmt.Errorf("failed to check filename: %w", err)
	}
	if !exists {
		return name, nil
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%s%s", base, suffix, ext), nil
}

// ManagedPath is the storage location for an ingested item.
func ManagedPath(collectionID uuid.UUID, filename string) string {
	return path.Join("collections", collectionID.String(), filename)
}
