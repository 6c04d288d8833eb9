package remote

import "context"

// Row is a single record keyed by column name.
type Row map[string]any

// Filter is an equality match on one field.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Order sorts results by a field.
type Order struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// Expand attaches child rows of Collection whose ForeignKey equals the
// parent id. The children are placed on the parent row under As.
type Expand struct {
	As         string `json:"as"`
	Collection string `json:"collection"`
	ForeignKey string `json:"foreign_key"`
}

// Query describes a select over one collection.
type Query struct {
	Filters []Filter `json:"filters,omitempty"`
	Orders  []Order  `json:"orders,omitempty"`
	Expand  []Expand `json:"expand,omitempty"`
}

// Where returns a copy of q with an additional equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// OrderBy returns a copy of q with an additional sort key.
func (q Query) OrderBy(field string, descending bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Descending: descending})
	return q
}

// With returns a copy of q that expands a child collection.
func (q Query) With(as, collection, foreignKey string) Query {
	q.Expand = append(append([]Expand(nil), q.Expand...), Expand{As: as, Collection: collection, ForeignKey: foreignKey})
	return q
}

// Store is the generic record store the client mirrors. Implementations
// return the canonical written row from Insert and Upsert.
type Store interface {
	Select(ctx context.Context, collection string, q Query) ([]Row, error)
	Insert(ctx context.Context, collection string, row Row) (Row, error)
	Update(ctx context.Context, collection, id string, fields Row) error
	Delete(ctx context.Context, collection, id string) error
	Upsert(ctx context.Context, collection string, row Row, onConflict []string) (Row, error)
}
