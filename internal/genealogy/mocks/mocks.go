package mocks

import (
	"context"

	"github.com/rpggio/lineage/internal/genealogy"
	"github.com/stretchr/testify/mock"
)

// Database is a mock for genealogy.Database.
type Database struct {
	mock.Mock
}

func (m *Database) Get(ctx context.Context, ns genealogy.Namespace, handle string) (genealogy.Object, error) {
	args := m.Called(ctx, ns, handle)
	if obj, ok := args.Get(0).(genealogy.Object); ok {
		return obj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Database) GetByID(ctx context.Context, ns genealogy.Namespace, id string) (genealogy.Object, error) {
	args := m.Called(ctx, ns, id)
	if obj, ok := args.Get(0).(genealogy.Object); ok {
		return obj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Database) Handles(ctx context.Context, ns genealogy.Namespace) ([]string, error) {
	args := m.Called(ctx, ns)
	if list, ok := args.Get(0).([]string); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Database) Iterate(ctx context.Context, ns genealogy.Namespace, fn func(genealogy.Object) error) error {
	args := m.Called(ctx, ns, fn)
	if objs, ok := args.Get(0).([]genealogy.Object); ok {
		for _, obj := range objs {
			if err := fn(obj); err != nil {
				return err
			}
		}
	}
	return args.Error(1)
}

func (m *Database) TagFromName(ctx context.Context, name string) (*genealogy.Tag, error) {
	args := m.Called(ctx, name)
	if tag, ok := args.Get(0).(*genealogy.Tag); ok {
		return tag, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Database) DefaultPersonHandle(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *Database) Bookmarks(ctx context.Context, ns genealogy.Namespace) ([]string, error) {
	args := m.Called(ctx, ns)
	if list, ok := args.Get(0).([]string); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Database) ReferenceCount(ctx context.Context, handle string) (int, error) {
	args := m.Called(ctx, handle)
	return args.Int(0), args.Error(1)
}
