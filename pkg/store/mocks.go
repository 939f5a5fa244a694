package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

var _ Store = &MockStore{}

// MockStore is a testify mock of Store for failure-path tests.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Open(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Put(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, prefix string) ([]KeyInfo, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]KeyInfo)
	return keys, args.Error(1)
}
