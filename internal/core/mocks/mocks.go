package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

// MockTicketRepository is a mock implementation of ports.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{}
}

func (m *MockTicketRepository) FindByCallKey(ctx context.Context, agentID, conversationID string) (*domain.Ticket, error) {
	args := m.Called(ctx, agentID, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) FindByTicketNumber(ctx context.Context, ticketNumber, agentID string) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketNumber, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) TicketNumberExists(ctx context.Context, ticketNumber string) (bool, error) {
	args := m.Called(ctx, ticketNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketRepository) Insert(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ReplaceCall(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) UpdateStatus(ctx context.Context, ticketNumber, agentID string, status domain.TicketStatus) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketNumber, agentID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) MergeAudioURL(ctx context.Context, params ports.MergeAudioParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) SetEvaluation(ctx context.Context, id int64, eval *domain.Evaluation) error {
	args := m.Called(ctx, id, eval)
	return args.Error(0)
}

func (m *MockTicketRepository) List(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListPendingEvaluation(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

// MockNumberAllocator is a mock implementation of ports.NumberAllocator
type MockNumberAllocator struct {
	mock.Mock
}

func NewMockNumberAllocator() *MockNumberAllocator {
	return &MockNumberAllocator{}
}

func (m *MockNumberAllocator) Allocate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockBlobStore is a mock implementation of ports.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{}
}

func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

// MockEvaluator is a mock implementation of ports.Evaluator
type MockEvaluator struct {
	mock.Mock
}

func NewMockEvaluator() *MockEvaluator {
	return &MockEvaluator{}
}

func (m *MockEvaluator) Evaluate(ctx context.Context, req ports.EvaluationRequest) (*domain.Evaluation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Evaluation), args.Error(1)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.TicketEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.TicketEvent) error {
	args := m.Called(event)
	return args.Error(0)
}
