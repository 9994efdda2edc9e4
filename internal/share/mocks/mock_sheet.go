package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSheet struct {
	mock.Mock
}

func (m *MockSheet) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockSheet) ShareFile(ctx context.Context, path, mimeType, title string) error {
	args := m.Called(ctx, path, mimeType, title)
	return args.Error(0)
}

func (m *MockSheet) ShareText(ctx context.Context, title, url string) error {
	args := m.Called(ctx, title, url)
	return args.Error(0)
}

type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}
