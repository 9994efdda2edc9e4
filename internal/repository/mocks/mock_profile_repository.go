package mocks

import (
	"context"

	"vendocs/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) FindByUID(ctx context.Context, uid string) (*model.UserProfile, error) {
	args := m.Called(ctx, uid)
	if p, ok := args.Get(0).(*model.UserProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
