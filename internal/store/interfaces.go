package store

import (
	"context"

	"github.com/sumandas0/querygate/internal/models"
)

// IndexRegistry is the persistent catalog of index definitions. Reads used
// for search normalization go through GetIndexSnapshot, which serves the
// definition from a scoped read-only transaction released before returning.
type IndexRegistry interface {
	CreateIndex(ctx context.Context, def *models.IndexDefinition) error
	GetIndex(ctx context.Context, uid string) (*models.IndexDefinition, error)
	GetIndexSnapshot(ctx context.Context, uid string) (*models.IndexDefinition, error)
	UpdateIndex(ctx context.Context, def *models.IndexDefinition) error
	DeleteIndex(ctx context.Context, uid string) error
	ListIndexes(ctx context.Context) ([]*models.IndexDefinition, error)

	Ping(ctx context.Context) error
	Close() error
}

// SearchEngine executes a validated search specification. Ranking, matching
// and scoring live entirely behind this boundary.
type SearchEngine interface {
	Execute(ctx context.Context, indexUID string, spec *models.SearchSpecification) (*models.SearchResult, error)

	CreateCollection(ctx context.Context, def *models.IndexDefinition) error
	DeleteCollection(ctx context.Context, indexUID string) error

	Ping(ctx context.Context) error
	Close() error
}
