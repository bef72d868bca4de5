package spatial

import (
	"context"
	"log/slog"
	"sync"

	"campus-map-server/internal/shared/errors"
)

// Store is the catalog persistence the service reads and writes.
type Store interface {
	ListLayers(ctx context.Context) ([]LayerRecord, error)
	ListEntities(ctx context.Context, layerID string) ([]EntityRecord, error)
	UpsertLayer(ctx context.Context, layer LayerRecord) error
	UpsertEntitiesBatch(ctx context.Context, layerID string, records []EntityRecord) (int, error)
}

// Classifier assigns a category to an entity by layer and display name.
type Classifier interface {
	Classify(layerID, name string) (Category, bool)
}

type Service struct {
	store      Store
	classifier Classifier
	logger     *slog.Logger

	mu       sync.RWMutex
	entities map[string][]EntityRecord
}

func NewService(store Store, classifier Classifier, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		logger:     logger,
		entities:   make(map[string][]EntityRecord),
	}
}

func (s *Service) Layers(ctx context.Context) ([]LayerRecord, error) {
	layers, err := s.store.ListLayers(ctx)
	if err != nil {
		return nil, errors.WrapInternal("failed to list layers", err)
	}
	return layers, nil
}

// Records returns a layer's catalog rows, served from cache after the first read.
func (s *Service) Records(ctx context.Context, layerID string) ([]EntityRecord, error) {
	s.mu.RLock()
	cached, ok := s.entities[layerID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	logger := s.logger.With("component", "spatial_service", "operation", "records", "layer_id", layerID)

	layers, err := s.Layers(ctx)
	if err != nil {
		return nil, err
	}
	if !containsLayer(layers, layerID) {
		return nil, errors.NotFoundf("layer %q not found", layerID)
	}

	records, err := s.store.ListEntities(ctx, layerID)
	if err != nil {
		return nil, errors.WrapInternal("failed to list layer entities", err)
	}
	if records == nil {
		records = []EntityRecord{}
	}

	s.mu.Lock()
	s.entities[layerID] = records
	s.mu.Unlock()

	logger.Debug("Layer cached", "count", len(records))
	return records, nil
}

// LoadRegistry builds a fresh registry for one viewer, so visibility changes
// never leak between sessions.
func (s *Service) LoadRegistry(ctx context.Context, layerID string) (*Registry, error) {
	records, err := s.Records(ctx, layerID)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, rec := range records {
		e := rec.Entity()
		if s.classifier != nil {
			name, _ := e.DisplayName()
			if c, ok := s.classifier.Classify(layerID, name); ok {
				e.Category = c
			}
		}
		reg.Register(e)
	}
	return reg, nil
}

// LoadResult is the outcome of one asynchronous layer load.
type LoadResult struct {
	LayerID  string
	Registry *Registry
	Err      error
}

// LoadAsync loads each layer on its own goroutine and hands every result to
// deliver as it completes. Results arrive in completion order, not request order.
func (s *Service) LoadAsync(ctx context.Context, layerIDs []string, deliver func(LoadResult)) {
	for _, id := range layerIDs {
		go func(layerID string) {
			reg, err := s.LoadRegistry(ctx, layerID)
			if err != nil {
				s.logger.Warn("Layer load failed",
					"component", "spatial_service",
					"layer_id", layerID,
					"error", err)
			}
			deliver(LoadResult{LayerID: layerID, Registry: reg, Err: err})
		}(id)
	}
}

// Import writes a layer and its entities to the catalog and drops the cached copy.
func (s *Service) Import(ctx context.Context, layer LayerRecord, records []EntityRecord) (int, error) {
	logger := s.logger.With("component", "spatial_service", "operation", "import", "layer_id", layer.ID)

	if layer.ID == "" {
		return 0, errors.Validation("layer ID is required")
	}
	for _, rec := range records {
		if rec.ID == "" {
			return 0, errors.Validation("entity ID is required")
		}
	}

	if err := s.store.UpsertLayer(ctx, layer); err != nil {
		return 0, errors.WrapInternal("failed to save layer", err)
	}

	count, err := s.store.UpsertEntitiesBatch(ctx, layer.ID, records)
	if err != nil {
		return 0, errors.WrapInternal("failed to save layer entities", err)
	}

	s.mu.Lock()
	delete(s.entities, layer.ID)
	s.mu.Unlock()

	logger.Info("Layer imported", "count", count)
	return count, nil
}

func containsLayer(layers []LayerRecord, id string) bool {
	for _, l := range layers {
		if l.ID == id {
			return true
		}
	}
	return false
}
