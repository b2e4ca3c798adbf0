package services

import (
	"context"
	"math/rand/v2"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

// allocationAttempts bounds the collision retry loop. With a 36^6 keyspace a
// single collision is already unlikely; exhausting five attempts indicates
// something operator-visible is wrong.
const allocationAttempts = 5

// TicketNumberAllocator draws 6-character uppercase-alphanumeric ticket
// numbers and checks them against the record set.
type TicketNumberAllocator struct {
	repo     ports.TicketRepository
	attempts int
	intN     func(n int) int
}

var _ ports.NumberAllocator = (*TicketNumberAllocator)(nil)

// NewTicketNumberAllocator creates an allocator backed by the given record set.
func NewTicketNumberAllocator(repo ports.TicketRepository) *TicketNumberAllocator {
	return &TicketNumberAllocator{
		repo:     repo,
		attempts: allocationAttempts,
		intN:     rand.IntN,
	}
}

// Allocate returns a ticket number not already present in the record set, or
// ErrAllocationExhausted if every attempt collided.
func (a *TicketNumberAllocator) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < a.attempts; i++ {
		candidate := a.generate()

		exists, err := a.repo.TicketNumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperrors.ErrAllocationExhausted
}

// generate draws each character position independently and uniformly from the
// 36-symbol alphabet.
func (a *TicketNumberAllocator) generate() string {
	buf := make([]byte, domain.TicketNumberLength)
	for i := range buf {
		buf[i] = domain.TicketNumberAlphabet[a.intN(len(domain.TicketNumberAlphabet))]
	}
	return string(buf)
}
