package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const dimensionStampKey = "embedding_dimension"

// assetColumns selects the full asset projection. The geography column
// is decomposed with ST_X/ST_Y so rows never carry raw EWKB.
const assetColumns = `id, name, description, address, category,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	embedding, image_embeddings, tags, images, metadata, created_at`

// assetListColumns is assetColumns without the embedding columns.
const assetListColumns = `id, name, description, address, category,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	tags, images, metadata, created_at`

// Repository implements storage.AssetRepository over PostgreSQL with
// the pgvector and PostGIS extensions. Similarity ranking runs inside
// the database; image list mutations serialize on row locks.
type Repository struct {
	db        *gorm.DB
	dimension int
	logger    *slog.Logger
}

var _ storage.AssetRepository = (*Repository)(nil)

// Open connects to PostgreSQL, prepares the schema, and verifies the
// store's embedding dimension stamp.
func Open(dsn string, dimension int) (*Repository, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	r := &Repository{
		db:        db,
		dimension: dimension,
		logger:    slog.Default().With("component", "postgres_store"),
	}

	if err := r.initSchema(); err != nil {
		_ = r.Close()
		return nil, err
	}
	if err := r.checkDimensionStamp(); err != nil {
		_ = r.Close()
		return nil, err
	}

	r.logger.Info("postgres store ready", "dimension", dimension)
	return r, nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Dimension returns the embedding dimension this store was opened with.
func (r *Repository) Dimension() int {
	return r.dimension
}

// initSchema creates extensions, tables, and indexes if missing.
func (r *Repository) initSchema() error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS assets (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			location GEOGRAPHY(POINT, 4326),
			embedding vector(%d),
			image_embeddings vector(%d),
			tags TEXT[],
			images JSONB,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, r.dimension, r.dimension),
		`CREATE INDEX IF NOT EXISTS assets_embedding_idx
			ON assets USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		`CREATE INDEX IF NOT EXISTS assets_image_embedding_idx
			ON assets USING ivfflat (image_embeddings vector_cosine_ops) WITH (lists = 100)`,
		`CREATE INDEX IF NOT EXISTS assets_location_idx
			ON assets USING GIST (location)`,
		`CREATE TABLE IF NOT EXISTS asset_store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS maintenance_checkpoints (
			name TEXT PRIMARY KEY,
			last_id BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if err := r.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// checkDimensionStamp writes the configured dimension on first open and
// rejects reopening an existing store with a different one.
func (r *Repository) checkDimensionStamp() error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var value string
		res := tx.Raw(`SELECT value FROM asset_store_meta WHERE key = ? FOR UPDATE`, dimensionStampKey).Scan(&value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Exec(`INSERT INTO asset_store_meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`,
				dimensionStampKey, strconv.Itoa(r.dimension)).Error
		}

		stored, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("corrupt dimension stamp %q: %w", value, err)
		}
		if stored != r.dimension {
			return fmt.Errorf("%w: store was created with dimension %d, configured %d",
				storage.ErrDimensionMismatch, stored, r.dimension)
		}
		return nil
	})
}

// Insert adds an asset to storage and returns its assigned ID.
func (r *Repository) Insert(ctx context.Context, asset *core.Asset) (core.ID, error) {
	if asset.TextEmbedding != nil {
		if err := r.checkDimension(asset.TextEmbedding); err != nil {
			return 0, err
		}
	}
	if asset.ImageEmbedding != nil {
		if err := r.checkDimension(asset.ImageEmbedding); err != nil {
			return 0, err
		}
	}

	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}

	imagesJSON, err := encodeImages(asset.Images)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
	}
	var metadataParam any
	if len(asset.Metadata) > 0 {
		b, err := json.Marshal(asset.Metadata)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}
		metadataParam = string(b)
	}

	var id int64
	res := r.db.WithContext(ctx).Raw(`
		INSERT INTO assets (name, description, address, category, location,
			embedding, image_embeddings, tags, images, metadata, created_at)
		VALUES (?, ?, ?, ?, ST_GeogFromText(?), ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		asset.Name, asset.Description, asset.Address, asset.Category, wktPoint(asset.Location),
		nullableVector(asset.TextEmbedding), nullableVector(asset.ImageEmbedding),
		pq.StringArray(asset.Tags), string(imagesJSON), metadataParam, asset.CreatedAt,
	).Scan(&id)
	if res.Error != nil {
		return 0, res.Error
	}

	asset.Id = core.ID(id)
	return asset.Id, nil
}

// Get retrieves a single asset by ID, embeddings included.
func (r *Repository) Get(ctx context.Context, id core.ID) (*core.Asset, error) {
	var row assetRow
	res := r.db.WithContext(ctx).Raw(
		`SELECT `+assetColumns+` FROM assets WHERE id = ?`, int64(id),
	).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return row.toAsset()
}

// GetImages retrieves the image listing view of an asset.
func (r *Repository) GetImages(ctx context.Context, id core.ID) (*core.AssetImages, error) {
	var row struct {
		Id     int64
		Name   string
		Images []byte
		Tags   pq.StringArray
	}
	res := r.db.WithContext(ctx).Raw(
		`SELECT id, name, images, tags FROM assets WHERE id = ?`, int64(id),
	).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}

	result := &core.AssetImages{
		Id:   core.ID(row.Id),
		Name: row.Name,
		Tags: row.Tags,
	}
	if len(row.Images) > 0 {
		if err := json.Unmarshal(row.Images, &result.Images); err != nil {
			return nil, fmt.Errorf("decoding images column: %w", err)
		}
	}
	return result, nil
}

// AppendImage atomically appends an image record, unions tags, and
// replaces the image embedding when a non-nil one is supplied. The row
// lock serializes concurrent mutations of the same asset.
func (r *Repository) AppendImage(ctx context.Context, id core.ID, img core.ImageRecord, tags []string, imageEmbedding []float32) (*core.ImageCounts, error) {
	if err := core.ValidateImageRecord(&img); err != nil {
		return nil, err
	}
	if imageEmbedding != nil {
		if err := r.checkDimension(imageEmbedding); err != nil {
			return nil, err
		}
	}

	var counts *core.ImageCounts
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		images, rowTags, err := lockImageState(tx, id)
		if err != nil {
			return err
		}

		images = append(images, img)
		merged := core.UnionTags(rowTags, tags)

		imagesJSON, err := encodeImages(images)
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}

		// A nil embedding never clears the stored one.
		if err := tx.Exec(`
			UPDATE assets
			SET images = ?::jsonb,
			    tags = ?::text[],
			    image_embeddings = COALESCE(?::vector, image_embeddings)
			WHERE id = ?`,
			string(imagesJSON), pq.StringArray(merged), nullableVector(imageEmbedding), int64(id),
		).Error; err != nil {
			return err
		}

		counts = &core.ImageCounts{
			Id:         id,
			ImageCount: len(images),
			TagCount:   len(merged),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// RemoveImageAt atomically removes the image at the given position,
// returning the removed record and the remaining count.
func (r *Repository) RemoveImageAt(ctx context.Context, id core.ID, index int) (*core.ImageRecord, int, error) {
	var (
		removed   core.ImageRecord
		remaining int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		images, _, err := lockImageState(tx, id)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(images) {
			return fmt.Errorf("%w: index %d with %d images", storage.ErrIndexOutOfRange, index, len(images))
		}

		removed = images[index]
		images = append(images[:index], images[index+1:]...)
		remaining = len(images)

		imagesJSON, err := encodeImages(images)
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}
		return tx.Exec(`UPDATE assets SET images = ?::jsonb WHERE id = ?`,
			string(imagesJSON), int64(id)).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return &removed, remaining, nil
}

// SimilarityQuery ranks stored assets against the query vector by cosine
// similarity, descending, ties broken by ascending ID. Only rows with a
// non-NULL embedding of the requested modality are candidates; ranking
// runs in the database through the pgvector cosine operator. Matches
// carry records without embeddings.
func (r *Repository) SimilarityQuery(ctx context.Context, query []float32, opts storage.QueryOptions) ([]core.Match, error) {
	if err := r.checkDimension(query); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var column string
	switch opts.Modality {
	case core.ModalityText:
		column = "embedding"
	case core.ModalityImage:
		column = "image_embeddings"
	default:
		return nil, fmt.Errorf("%w: unknown modality %d", storage.ErrInvalidQuery, opts.Modality)
	}

	sql := fmt.Sprintf(`
		SELECT %s, 1 - (%s <=> ?) AS similarity
		FROM assets
		WHERE %s IS NOT NULL`, assetListColumns, column, column)
	args := []any{pgvector.NewVector(query)}

	if opts.Within != nil {
		sql += ` AND ST_DWithin(location, ST_GeogFromText(?), ?)`
		args = append(args, wktPoint(&opts.Within.Center), opts.Within.RadiusKM*1000)
	}

	// Highest score first; equal scores resolve to the older asset.
	sql += ` ORDER BY similarity DESC, id ASC LIMIT ?`
	args = append(args, opts.Limit)

	var rows []matchRow
	if err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	matches := make([]core.Match, 0, len(rows))
	for i := range rows {
		asset, err := rows[i].toAsset()
		if err != nil {
			return nil, err
		}
		matches = append(matches, core.Match{Asset: asset, Score: rows[i].Similarity})
	}
	return matches, nil
}

// UpdateTextEmbedding replaces an asset's text embedding.
func (r *Repository) UpdateTextEmbedding(ctx context.Context, id core.ID, embedding []float32) error {
	if err := r.checkDimension(embedding); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Exec(`UPDATE assets SET embedding = ? WHERE id = ?`,
		pgvector.NewVector(embedding), int64(id))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateLocation sets or clears an asset's location.
func (r *Repository) UpdateLocation(ctx context.Context, id core.ID, loc *core.Location) error {
	if loc != nil {
		if err := core.ValidateLocation(loc); err != nil {
			return err
		}
	}

	res := r.db.WithContext(ctx).Exec(`UPDATE assets SET location = ST_GeogFromText(?) WHERE id = ?`,
		wktPoint(loc), int64(id))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves up to limit assets with ID > afterID in ascending ID
// order. Returned records carry no embeddings.
func (r *Repository) List(ctx context.Context, afterID core.ID, limit int) ([]*core.Asset, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var rows []assetRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+assetListColumns+` FROM assets WHERE id > ? ORDER BY id ASC LIMIT ?`,
		int64(afterID), limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]*core.Asset, 0, len(rows))
	for i := range rows {
		asset, err := rows[i].toAsset()
		if err != nil {
			return nil, err
		}
		results = append(results, asset)
	}
	return results, nil
}

// Stats aggregates store-wide counts in the database.
func (r *Repository) Stats(ctx context.Context) (*core.StoreStats, error) {
	db := r.db.WithContext(ctx)
	stats := &core.StoreStats{ByCategory: make(map[string]int)}

	if err := db.Raw(`SELECT COUNT(*) FROM assets`).Scan(&stats.TotalAssets).Error; err != nil {
		return nil, err
	}

	var categories []struct {
		Category string
		Count    int
	}
	err := db.Raw(`
		SELECT COALESCE(NULLIF(category, ''), 'uncategorized') AS category, COUNT(*) AS count
		FROM assets GROUP BY 1`).Scan(&categories).Error
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		stats.ByCategory[c.Category] = c.Count
	}

	err = db.Raw(`SELECT COUNT(*) FROM assets WHERE images IS NOT NULL AND jsonb_array_length(images) > 0`).
		Scan(&stats.WithImages).Error
	if err != nil {
		return nil, err
	}
	err = db.Raw(`SELECT COUNT(*) FROM assets WHERE location IS NOT NULL`).Scan(&stats.WithLocation).Error
	if err != nil {
		return nil, err
	}
	err = db.Raw(`SELECT COUNT(DISTINCT tag) FROM assets, unnest(tags) AS tag`).Scan(&stats.UniqueTags).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// checkDimension rejects vectors whose size differs from the store's
// stamped dimension.
func (r *Repository) checkDimension(vec []float32) error {
	if len(vec) != r.dimension {
		return fmt.Errorf("%w: got %d, store dimension %d",
			storage.ErrDimensionMismatch, len(vec), r.dimension)
	}
	return nil
}

// lockImageState reads an asset's image list and tags under FOR UPDATE,
// so the enclosing transaction owns the read-modify-write cycle.
func lockImageState(tx *gorm.DB, id core.ID) ([]core.ImageRecord, []string, error) {
	var row struct {
		Images []byte
		Tags   pq.StringArray
	}
	res := tx.Table("assets").
		Select("images, tags").
		Where("id = ?", int64(id)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scan(&row)
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil, storage.ErrNotFound
	}

	var images []core.ImageRecord
	if len(row.Images) > 0 {
		if err := json.Unmarshal(row.Images, &images); err != nil {
			return nil, nil, fmt.Errorf("decoding images column: %w", err)
		}
	}
	return images, row.Tags, nil
}
