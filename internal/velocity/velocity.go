// Package velocity backfills order velocity counters for incoming transactions.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Service counts a user's recent orders so the risk evaluator can score
// velocity even when the caller does not supply the counters.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Fill populates orders_last_24h and orders_last_7d on the transaction when
// they are absent. Counters the caller supplied are left untouched; supplied
// data wins over derived data.
func (s *Service) Fill(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if s.repo == nil {
		return fmt.Errorf("no data source available")
	}
	if tx.OrdersLast24h != nil && tx.OrdersLast7d != nil {
		return nil
	}

	if tx.OrdersLast24h == nil {
		count, err := s.countOrders(ctx, tenantID, tx.UserID, 24*time.Hour)
		if err != nil {
			return err
		}
		tx.OrdersLast24h = &count
	}

	if tx.OrdersLast7d == nil {
		count, err := s.countOrders(ctx, tenantID, tx.UserID, 7*24*time.Hour)
		if err != nil {
			return err
		}
		tx.OrdersLast7d = &count
	}

	return nil
}

func (s *Service) countOrders(ctx context.Context, tenantID, userID string, window time.Duration) (int, error) {
	since := time.Now().Add(-window)
	count, err := s.repo.CountTransactionsByUser(ctx, tenantID, userID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return int(count), nil
}

// RecordOrder bumps the rolling order counters for a user. Counter state lives
// in the cache so repeated reviews in the same window see the updated velocity
// without a database round trip.
func (s *Service) RecordOrder(ctx context.Context, tenantID, userID string) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.cache.IncrementCounter(ctx, tenantID, "orders:24h:"+userID, 24*time.Hour); err != nil {
		return err
	}
	_, err := s.cache.IncrementCounter(ctx, tenantID, "orders:7d:"+userID, 7*24*time.Hour)
	return err
}
