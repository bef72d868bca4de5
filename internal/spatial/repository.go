package spatial

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"campus-map-server/internal/shared/database"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing spatial repository")
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) ListLayers(ctx context.Context) ([]LayerRecord, error) {
	logger := r.logger.With("component", "spatial_repository", "operation", "list_layers")
	logger.Debug("Listing catalog layers")

	query := `
		SELECT id, name, sort_order, created_at
		FROM campus_layers
		ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query layers", "error", err)
		return nil, fmt.Errorf("failed to query layers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var layers []LayerRecord
	for rows.Next() {
		var l LayerRecord
		if err := rows.Scan(&l.ID, &l.Name, &l.SortOrder, &l.CreatedAt); err != nil {
			logger.Error("Failed to scan layer row", "error", err)
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating layers: %w", err)
	}

	logger.Debug("Layers retrieved", "count", len(layers))
	return layers, nil
}

// ListEntities returns a layer's entities in the order they were ingested.
func (r *Repository) ListEntities(ctx context.Context, layerID string) ([]EntityRecord, error) {
	logger := r.logger.With("component", "spatial_repository", "operation", "list_entities", "layer_id", layerID)
	logger.Debug("Listing layer entities")

	query := `
		SELECT id, layer_id, name, category, geometry, properties, lon, lat, height, radius
		FROM campus_entities
		WHERE layer_id = $1
		ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, layerID)
	if err != nil {
		logger.Error("Failed to query entities", "error", err)
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var records []EntityRecord
	for rows.Next() {
		var (
			rec        EntityRecord
			name       sql.NullString
			properties []byte
			lon, lat   sql.NullFloat64
			radius     sql.NullFloat64
		)
		err := rows.Scan(
			&rec.ID,
			&rec.LayerID,
			&name,
			&rec.Category,
			&rec.Geometry,
			&properties,
			&lon,
			&lat,
			&rec.Height,
			&radius,
		)
		if err != nil {
			logger.Error("Failed to scan entity row", "error", err)
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}

		if name.Valid {
			rec.Name = &name.String
		}
		if lon.Valid && lat.Valid {
			rec.Longitude = &lon.Float64
			rec.Latitude = &lat.Float64
		}
		if radius.Valid {
			rec.Radius = &radius.Float64
		}
		if len(properties) > 0 {
			if err := json.Unmarshal(properties, &rec.Properties); err != nil {
				// A malformed bag leaves the entity without a display name.
				logger.Warn("Discarding malformed entity properties", "entity_id", rec.ID, "error", err)
				rec.Properties = nil
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	logger.Debug("Entities retrieved", "count", len(records))
	return records, nil
}

func (r *Repository) UpsertLayer(ctx context.Context, layer LayerRecord) error {
	logger := r.logger.With("component", "spatial_repository", "operation", "upsert_layer", "layer_id", layer.ID)

	query := `
		INSERT INTO campus_layers (id, name, sort_order)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order`

	if _, err := r.db.ExecContext(ctx, query, layer.ID, layer.Name, layer.SortOrder); err != nil {
		logger.Error("Failed to upsert layer", "error", err)
		return fmt.Errorf("failed to upsert layer: %w", err)
	}

	logger.Debug("Layer upserted")
	return nil
}

// UpsertEntitiesBatch writes a layer's entities in a single statement.
// Existing IDs are updated in place and keep their ingestion order.
func (r *Repository) UpsertEntitiesBatch(ctx context.Context, layerID string, records []EntityRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	logger := r.logger.With(
		"component", "spatial_repository",
		"operation", "upsert_entities_batch",
		"layer_id", layerID,
		"count", len(records),
	)
	logger.Debug("Upserting entities in batch")

	for i := range records {
		records[i].LayerID = layerID
		if records[i].Geometry == "" {
			records[i].Geometry = GeometryNone
		}
		if records[i].Category == "" {
			records[i].Category = CategoryOther
		}
		if records[i].Properties == nil {
			records[i].Properties = map[string]any{}
		}
	}

	recordsJSON, err := json.Marshal(records)
	if err != nil {
		logger.Error("Failed to marshal entities to JSON", "error", err)
		return 0, fmt.Errorf("failed to marshal entities: %w", err)
	}

	query := `
		INSERT INTO campus_entities (id, layer_id, name, category, geometry, properties, lon, lat, height, radius)
		SELECT
			data->>'id',
			data->>'layer_id',
			data->>'name',
			data->>'category',
			data->>'geometry',
			COALESCE((data->'properties')::jsonb, '{}'::jsonb),
			(data->>'lon')::double precision,
			(data->>'lat')::double precision,
			COALESCE((data->>'height')::double precision, 0),
			(data->>'radius')::double precision
		FROM json_array_elements($1::json) AS data
		ON CONFLICT (id) DO UPDATE SET
			layer_id = EXCLUDED.layer_id,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			geometry = EXCLUDED.geometry,
			properties = EXCLUDED.properties,
			lon = EXCLUDED.lon,
			lat = EXCLUDED.lat,
			height = EXCLUDED.height,
			radius = EXCLUDED.radius,
			updated_at = NOW()`

	result, err := r.db.ExecContext(ctx, query, string(recordsJSON))
	if err != nil {
		logger.Error("Failed to batch upsert entities", "error", err)
		return 0, fmt.Errorf("failed to batch upsert entities: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		logger.Warn("Rows affected unavailable", "error", err)
		affected = int64(len(records))
	}

	logger.Info("Entities batch upserted successfully", "count", affected)
	return int(affected), nil
}
