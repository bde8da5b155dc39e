package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/pkg/utils"
)

// MemoryRegistry is an in-memory IndexRegistry for tests.
type MemoryRegistry struct {
	mu      sync.RWMutex
	indexes map[string]*models.IndexDefinition
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		indexes: make(map[string]*models.IndexDefinition),
	}
}

func cloneDefinition(def *models.IndexDefinition) *models.IndexDefinition {
	clone := *def
	clone.Fields = make([]models.FieldDefinition, len(def.Fields))
	copy(clone.Fields, def.Fields)
	return &clone
}

func (r *MemoryRegistry) CreateIndex(ctx context.Context, def *models.IndexDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.indexes[def.UID]; ok {
		return utils.NewAppError(utils.CodeAlreadyExists, "index already exists", nil).
			WithDetail("uid", def.UID)
	}
	r.indexes[def.UID] = cloneDefinition(def)
	return nil
}

func (r *MemoryRegistry) GetIndex(ctx context.Context, uid string) (*models.IndexDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.indexes[uid]
	if !ok {
		return nil, utils.NewAppError(utils.CodeNotFound, "index not found", nil).
			WithDetail("uid", uid)
	}
	return cloneDefinition(def), nil
}

func (r *MemoryRegistry) GetIndexSnapshot(ctx context.Context, uid string) (*models.IndexDefinition, error) {
	return r.GetIndex(ctx, uid)
}

func (r *MemoryRegistry) UpdateIndex(ctx context.Context, def *models.IndexDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.indexes[def.UID]
	if !ok || current.Version != def.Version {
		return utils.NewAppError(utils.CodeNotFound, "index not found or modified concurrently", nil).
			WithDetail("uid", def.UID)
	}
	def.Version++
	def.UpdatedAt = time.Now().UTC()
	r.indexes[def.UID] = cloneDefinition(def)
	return nil
}

func (r *MemoryRegistry) DeleteIndex(ctx context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.indexes[uid]; !ok {
		return utils.NewAppError(utils.CodeNotFound, "index not found", nil).
			WithDetail("uid", uid)
	}
	delete(r.indexes, uid)
	return nil
}

func (r *MemoryRegistry) ListIndexes(ctx context.Context) ([]*models.IndexDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*models.IndexDefinition, 0, len(r.indexes))
	for _, def := range r.indexes {
		defs = append(defs, cloneDefinition(def))
	}
	return defs, nil
}

func (r *MemoryRegistry) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRegistry) Close() error {
	return nil
}

// StubEngine records the specifications it receives and replies with a canned
// result, so tests can assert on what normalization produced.
type StubEngine struct {
	mu sync.Mutex

	Result        *models.SearchResult
	Err           error
	CollectionErr error

	ExecutedSpecs []*models.SearchSpecification
	ExecutedUIDs  []string
	Collections   map[string]bool
}

func NewStubEngine() *StubEngine {
	return &StubEngine{
		Collections: make(map[string]bool),
	}
}

func (e *StubEngine) Execute(ctx context.Context, indexUID string, spec *models.SearchSpecification) (*models.SearchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ExecutedSpecs = append(e.ExecutedSpecs, spec)
	e.ExecutedUIDs = append(e.ExecutedUIDs, indexUID)

	if e.Err != nil {
		return nil, e.Err
	}
	if e.Result != nil {
		return e.Result, nil
	}
	return models.NewSearchResult(spec.Query, 0), nil
}

// LastSpec returns the most recently executed specification, or nil.
func (e *StubEngine) LastSpec() *models.SearchSpecification {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.ExecutedSpecs) == 0 {
		return nil
	}
	return e.ExecutedSpecs[len(e.ExecutedSpecs)-1]
}

func (e *StubEngine) CreateCollection(ctx context.Context, def *models.IndexDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.CollectionErr != nil {
		return e.CollectionErr
	}
	e.Collections[def.UID] = true
	return nil
}

func (e *StubEngine) DeleteCollection(ctx context.Context, indexUID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.Collections, indexUID)
	return nil
}

func (e *StubEngine) Ping(ctx context.Context) error {
	return nil
}

func (e *StubEngine) Close() error {
	return nil
}
