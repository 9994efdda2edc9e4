package mocks

import (
	"context"

	"vendocs/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	if f, ok := args.Get(0).(func(context.Context, *model.Document) *model.Document); ok {
		return f(ctx, doc), args.Error(1)
	}
	if doc, ok := args.Get(0).(*model.Document); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if doc, ok := args.Get(0).(*model.Document); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentRepository) ListEntitled(ctx context.Context, level, limit int) ([]model.Document, error) {
	args := m.Called(ctx, level, limit)
	if docs, ok := args.Get(0).([]model.Document); ok {
		return docs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentRepository) ListActive(ctx context.Context, limit int) ([]model.Document, error) {
	args := m.Called(ctx, limit)
	if docs, ok := args.Get(0).([]model.Document); ok {
		return docs, args.Error(1)
	}
	return nil, args.Error(1)
}
