package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/mocks"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
)

// numberSet backs TicketNumberExists with an in-memory set so allocation
// tests can observe real collision behavior.
type numberSet struct {
	*mocks.MockTicketRepository
	taken map[string]bool
}

func newNumberSet() *numberSet {
	return &numberSet{
		MockTicketRepository: mocks.NewMockTicketRepository(),
		taken:                make(map[string]bool),
	}
}

func (s *numberSet) TicketNumberExists(_ context.Context, number string) (bool, error) {
	return s.taken[number], nil
}

func TestTicketNumberAllocator_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("produces well-formed numbers", func(t *testing.T) {
		alloc := services.NewTicketNumberAllocator(newNumberSet())

		number, err := alloc.Allocate(ctx)

		require.NoError(t, err)
		assert.Len(t, number, domain.TicketNumberLength)
		for _, c := range number {
			assert.True(t, strings.ContainsRune(domain.TicketNumberAlphabet, c),
				"unexpected character %q in %q", c, number)
		}
	})

	t.Run("pairwise distinct across many sequential allocations", func(t *testing.T) {
		set := newNumberSet()
		alloc := services.NewTicketNumberAllocator(set)

		for i := 0; i < 10000; i++ {
			number, err := alloc.Allocate(ctx)
			require.NoError(t, err)
			require.False(t, set.taken[number], "allocator returned already-taken number %q", number)
			set.taken[number] = true
		}
	})

	t.Run("retries collisions before succeeding", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := services.NewTicketNumberAllocator(repo)

		// First two candidates collide, the third is free.
		repo.On("TicketNumberExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Twice()
		repo.On("TicketNumberExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()

		number, err := alloc.Allocate(ctx)

		require.NoError(t, err)
		assert.Len(t, number, domain.TicketNumberLength)
		repo.AssertNumberOfCalls(t, "TicketNumberExists", 3)
	})

	t.Run("exhausts after bounded attempts", func(t *testing.T) {
		repo := mocks.NewMockTicketRepository()
		alloc := services.NewTicketNumberAllocator(repo)

		repo.On("TicketNumberExists", ctx, mock.AnythingOfType("string")).Return(true, nil)

		_, err := alloc.Allocate(ctx)

		assert.ErrorIs(t, err, apperrors.ErrAllocationExhausted)
		repo.AssertNumberOfCalls(t, "TicketNumberExists", 5)
	})
}
