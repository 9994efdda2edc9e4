package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"vendocs/internal/model"
	"vendocs/internal/service"
	"vendocs/internal/share"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) List(ctx context.Context, q service.ListQuery) ([]model.Document, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) ListFallback(ctx context.Context, q service.ListQuery) ([]model.Document, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) ResolveLink(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Thumbnail(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Open(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Share(ctx context.Context, id string) (*share.Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*share.Result), args.Error(1)
}

func (m *MockDocumentService) Upload(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64, meta service.UploadMeta) (*model.Document, error) {
	args := m.Called(ctx, r, originalFilename, contentType, size, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) EffectiveLevel(ctx context.Context, uid string, rawLevel any) int {
	args := m.Called(ctx, uid, rawLevel)
	return args.Int(0)
}
