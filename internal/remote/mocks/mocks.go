package mocks

import (
	"context"

	"github.com/rpggio/hq/internal/remote"
	"github.com/stretchr/testify/mock"
)

// Store is a mock for remote.Store.
type Store struct {
	mock.Mock
}

func (m *Store) Select(ctx context.Context, collection string, q remote.Query) ([]remote.Row, error) {
	args := m.Called(ctx, collection, q)
	if rows, ok := args.Get(0).([]remote.Row); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) Insert(ctx context.Context, collection string, row remote.Row) (remote.Row, error) {
	args := m.Called(ctx, collection, row)
	if out, ok := args.Get(0).(remote.Row); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) Update(ctx context.Context, collection, id string, fields remote.Row) error {
	args := m.Called(ctx, collection, id, fields)
	return args.Error(0)
}

func (m *Store) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

func (m *Store) Upsert(ctx context.Context, collection string, row remote.Row, onConflict []string) (remote.Row, error) {
	args := m.Called(ctx, collection, row, onConflict)
	if out, ok := args.Get(0).(remote.Row); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}
