package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"nxrm-staging-utility/nexus"
)

// MockRepositoryManager is a mock of nexus.RepositoryManager.
type MockRepositoryManager struct {
	mock.Mock
}

var _ nexus.RepositoryManager = (*MockRepositoryManager)(nil)

func (m *MockRepositoryManager) GetVersion(ctx context.Context) (*nexus.NxrmVersion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nexus.NxrmVersion), args.Error(1)
}

func (m *MockRepositoryManager) GetRepositories(ctx context.Context) ([]nexus.Repository, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]nexus.Repository), args.Error(1)
}

func (m *MockRepositoryManager) Upload(ctx context.Context, repository string, component *nexus.Component, tag string) error {
	args := m.Called(ctx, repository, component, tag)
	return args.Error(0)
}

func (m *MockRepositoryManager) GetTag(ctx context.Context, name string) (*nexus.Tag, bool, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*nexus.Tag), args.Bool(1), args.Error(2)
}

func (m *MockRepositoryManager) CreateTag(ctx context.Context, name string, attributes map[string]interface{}) (*nexus.Tag, error) {
	args := m.Called(ctx, name, attributes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nexus.Tag), args.Error(1)
}

func (m *MockRepositoryManager) Associate(ctx context.Context, tag string, search map[string]string) ([]nexus.ComponentInfo, error) {
	args := m.Called(ctx, tag, search)
	return componentInfos(args)
}

func (m *MockRepositoryManager) Disassociate(ctx context.Context, tag string, search map[string]string) ([]nexus.ComponentInfo, error) {
	args := m.Called(ctx, tag, search)
	return componentInfos(args)
}

func (m *MockRepositoryManager) Move(ctx context.Context, destination string, search map[string]string) ([]nexus.ComponentInfo, error) {
	args := m.Called(ctx, destination, search)
	return componentInfos(args)
}

func (m *MockRepositoryManager) MoveByTag(ctx context.Context, destination, tag string) ([]nexus.ComponentInfo, error) {
	args := m.Called(ctx, destination, tag)
	return componentInfos(args)
}

func (m *MockRepositoryManager) Delete(ctx context.Context, search map[string]string) ([]nexus.ComponentInfo, error) {
	args := m.Called(ctx, search)
	return componentInfos(args)
}

func (m *MockRepositoryManager) DeleteByTag(ctx context.Context, tag string) ([]nexus.ComponentInfo, error) {
	args := m.Called(ctx, tag)
	return componentInfos(args)
}

func (m *MockRepositoryManager) Search(ctx context.Context, search map[string]string) ([]nexus.SearchItem, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]nexus.SearchItem), args.Error(1)
}

func componentInfos(args mock.Arguments) ([]nexus.ComponentInfo, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]nexus.ComponentInfo), args.Error(1)
}
