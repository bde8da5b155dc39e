package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldID identifies a schema attribute. IDs are stable for the lifetime of
// an index definition snapshot.
type FieldID uint16

type FieldDefinition struct {
	ID        FieldID `json:"id"`
	Name      string  `json:"name" validate:"required,min=1,max=200"`
	Displayed bool    `json:"displayed"`
	Faceted   bool    `json:"faceted"`
}

// IndexDefinition is the persisted description of an index: its identifier
// and the ordered field catalog. Field order is the schema-declared order and
// drives wildcard facet expansion.
type IndexDefinition struct {
	ID        uuid.UUID         `json:"id"`
	UID       string            `json:"uid" validate:"required,min=1,max=100"`
	Fields    []FieldDefinition `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Version   int               `json:"version"`
}

func NewIndexDefinition(uid string, fields []FieldDefinition) *IndexDefinition {
	now := time.Now().UTC()
	return &IndexDefinition{
		ID:        uuid.New(),
		UID:       uid,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Schema is the read-only snapshot consulted while a search request is being
// normalized. name↔id mappings are inverses over the set of known attributes;
// the displayed set is a subset of the known attributes.
type Schema struct {
	displayed  map[string]struct{}
	nameToID   map[string]FieldID
	idToName   map[FieldID]string
	facetAttrs []FieldID
}

// NewSchema builds a snapshot from an index definition. facetAttrs keeps the
// declared field order; it is nil when no field is facet-enabled, which means
// faceting is disabled for the index.
func NewSchema(def *IndexDefinition) *Schema {
	s := &Schema{
		displayed: make(map[string]struct{}, len(def.Fields)),
		nameToID:  make(map[string]FieldID, len(def.Fields)),
		idToName:  make(map[FieldID]string, len(def.Fields)),
	}
	for _, f := range def.Fields {
		s.nameToID[f.Name] = f.ID
		s.idToName[f.ID] = f.Name
		if f.Displayed {
			s.displayed[f.Name] = struct{}{}
		}
		if f.Faceted {
			s.facetAttrs = append(s.facetAttrs, f.ID)
		}
	}
	return s
}

// DisplayedNames returns a copy of the displayed-attribute set, safe to use
// as a request-local working set.
func (s *Schema) DisplayedNames() map[string]struct{} {
	out := make(map[string]struct{}, len(s.displayed))
	for name := range s.displayed {
		out[name] = struct{}{}
	}
	return out
}

func (s *Schema) IsDisplayed(name string) bool {
	_, ok := s.displayed[name]
	return ok
}

func (s *Schema) ID(name string) (FieldID, bool) {
	id, ok := s.nameToID[name]
	return id, ok
}

func (s *Schema) Name(id FieldID) (string, bool) {
	name, ok := s.idToName[id]
	return name, ok
}

// AttributesForFaceting returns the facet-enabled field ids in declared
// order, or nil when faceting is not configured.
func (s *Schema) AttributesForFaceting() []FieldID {
	return s.facetAttrs
}

// DisplayedAttributes returns the displayed attribute names of a definition
// in declared field order.
func (d *IndexDefinition) DisplayedAttributes() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Displayed {
			names = append(names, f.Name)
		}
	}
	return names
}

// FacetedAttributes returns the facet-enabled attribute names in declared
// field order.
func (d *IndexDefinition) FacetedAttributes() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Faceted {
			names = append(names, f.Name)
		}
	}
	return names
}

// SetDisplayedAttributes marks exactly the given names as displayed and
// returns the names that matched no field.
func (d *IndexDefinition) SetDisplayedAttributes(names []string) []string {
	return d.setFlag(names, func(f *FieldDefinition, on bool) { f.Displayed = on })
}

// SetFacetedAttributes marks exactly the given names as facet-enabled and
// returns the names that matched no field.
func (d *IndexDefinition) SetFacetedAttributes(names []string) []string {
	return d.setFlag(names, func(f *FieldDefinition, on bool) { f.Faceted = on })
}

func (d *IndexDefinition) setFlag(names []string, set func(*FieldDefinition, bool)) []string {
	requested := make(map[string]struct{}, len(names))
	for _, n := range names {
		requested[n] = struct{}{}
	}
	for i := range d.Fields {
		_, on := requested[d.Fields[i].Name]
		set(&d.Fields[i], on)
		delete(requested, d.Fields[i].Name)
	}
	var unknown []string
	for _, n := range names {
		if _, left := requested[n]; left {
			unknown = append(unknown, n)
		}
	}
	return unknown
}
