// Package collection assembles the bridge components into the metadata collection a
// transport serves: type operations from the catalog bridge, instance lifecycle from
// the mapper, find operations from the searcher and reference copies from the
// federation synchronizer.
package collection

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/federation"
	"github.com/conduit-lang/metabridge/internal/bridge/instances"
	"github.com/conduit-lang/metabridge/internal/bridge/search"
	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/events"
	"github.com/conduit-lang/metabridge/internal/native"
	"github.com/conduit-lang/metabridge/internal/registry"
)

// Config identifies the repository and fixes its delete mode
type Config struct {
	CollectionID   string
	CollectionName string
	DeleteMode     instances.DeleteMode
}

// MetadataCollection is the inbound surface of one repository. The embedded
// components contribute their exported operations directly.
type MetadataCollection struct {
	*typecatalog.Bridge
	*instances.Mapper
	*search.Searcher
	*federation.Synchronizer

	name   string
	logger *zap.Logger
}

// New wires a metadata collection over a native store and a shared type registry.
// An empty collection id is replaced by a fresh uuid.
func New(store native.Store, reg registry.Registry, publisher events.Publisher, cfg Config, logger *zap.Logger) *MetadataCollection {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.CollectionID) == "" {
		cfg.CollectionID = uuid.New().String()
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = cfg.CollectionID
	}

	types := typecatalog.New(store, reg, cfg.CollectionID, logger.Named("typecatalog"))
	mapper := instances.New(store, types, instances.Config{
		CollectionID:   cfg.CollectionID,
		CollectionName: cfg.CollectionName,
		DeleteMode:     cfg.DeleteMode,
	}, logger)

	c := &MetadataCollection{
		Bridge:       types,
		Mapper:       mapper,
		Searcher:     search.New(store, types, mapper, logger),
		Synchronizer: federation.New(mapper, publisher, logger),
		name:         cfg.CollectionName,
		logger:       logger.Named("collection"),
	}
	c.logger.Info("metadata collection ready",
		zap.String("id", cfg.CollectionID),
		zap.String("name", cfg.CollectionName),
		zap.Stringer("deleteMode", cfg.DeleteMode))
	return c
}

// MetadataCollectionName returns the display name of the repository
func (c *MetadataCollection) MetadataCollectionName() string {
	return c.name
}

// GetLinkingEntities would return the entities on the paths between two entities.
// Graph traversal across repositories is not supported.
func (c *MetadataCollection) GetLinkingEntities(ctx context.Context, userID, startGUID, endGUID string,
	opts cohort.SearchOptions) (*cohort.InstanceGraph, error) {
	return nil, c.notImplemented("collection.GetLinkingEntities", userID, startGUID)
}

// GetEntityNeighborhood would return the instances within level hops of an entity
func (c *MetadataCollection) GetEntityNeighborhood(ctx context.Context, userID, guid string, level int,
	opts cohort.SearchOptions) (*cohort.InstanceGraph, error) {
	return nil, c.notImplemented("collection.GetEntityNeighborhood", userID, guid)
}

// GetRelatedEntities would return every entity reachable from the starting entity
func (c *MetadataCollection) GetRelatedEntities(ctx context.Context, userID, startGUID string,
	opts cohort.SearchOptions) ([]*cohort.EntityDetail, error) {
	return nil, c.notImplemented("collection.GetRelatedEntities", userID, startGUID)
}

func (c *MetadataCollection) notImplemented(op, userID, guid string) error {
	if userID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "user id is empty")
	}
	if guid == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "entity guid is empty")
	}
	return cohort.Errorf(cohort.ErrNotImplemented, op, guid, "graph traversal is not supported")
}
