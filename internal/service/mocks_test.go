// internal/service/mocks_test.go
package service

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

// MockBalanceRepository is a mock implementation of repository.BalanceRepository.
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.BalanceRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceRecord), args.Error(1)
}

func (m *MockBalanceRepository) SaveBalance(ctx context.Context, record *domain.BalanceRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockBalanceRepository) ListBalances(ctx context.Context) ([]domain.BalanceRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.BalanceRecord), args.Error(1)
}

// MockRequestRepository is a mock implementation of repository.RequestRepository.
type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) CreateRequest(ctx context.Context, req *domain.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestRepository) GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}

func (m *MockRequestRepository) ListRequests(ctx context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Request), args.Error(1)
}

func (m *MockRequestRepository) UpdateRequest(ctx context.Context, req *domain.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestRepository) DeleteRequest(ctx context.Context, kind domain.RequestKind, id string) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

// MockArtifactStore is a mock implementation of ArtifactStore.
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Save(ctx context.Context, userID, originalName string, src io.Reader, maxBytes int64) (string, error) {
	args := m.Called(ctx, userID, originalName, src, maxBytes)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) Delete(ctx context.Context, publicPath string) error {
	args := m.Called(ctx, publicPath)
	return args.Error(0)
}

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
