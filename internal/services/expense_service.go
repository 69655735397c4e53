package services

import (
	"context"
	"fmt"
	"log/slog"

	"smartbudget/internal/amqp"
	"smartbudget/internal/core"
	"smartbudget/internal/storage"
)

// retrainInterval is how many new expenses accumulate between retrain
// requests.
const retrainInterval = 25

// ExpenseService orchestrates expense writes across SQLite and AMQP.
// Every write lands in SQLite first; retrain requests are advisory
// and never fail the request.
type ExpenseService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewExpenseService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateExpense saves an expense locally and, every retrainInterval
// records, asks the worker to refit the forecast model.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	created, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	count, err := s.storage.CountExpenses(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to count expenses", "error", err)
		return created, nil
	}

	if count%retrainInterval == 0 {
		if err := s.publishRetrain(ctx, "expense_threshold", count); err != nil {
			slog.ErrorContext(ctx, "Failed to publish retrain message",
				"count", count, "error", err)
			// Don't fail the request - expense is saved locally
		}
	}

	return created, nil
}

// DeleteExpense soft deletes an expense.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// ListExpenses returns the stored history, oldest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, f storage.ListFilter) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, f)
}

// GetExpense retrieves one expense by id.
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

// GetStatistics aggregates stored totals.
func (s *ExpenseService) GetStatistics(ctx context.Context) (storage.Statistics, error) {
	return s.storage.GetStatistics(ctx)
}

// RequestRetrain publishes an explicit retrain request.
func (s *ExpenseService) RequestRetrain(ctx context.Context, reason string) error {
	count, err := s.storage.CountExpenses(ctx)
	if err != nil {
		return fmt.Errorf("count expenses: %w", err)
	}
	return s.publishRetrain(ctx, reason, count)
}

func (s *ExpenseService) publishRetrain(ctx context.Context, reason string, count int) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping retrain message")
		return nil
	}

	return s.amqpClient.PublishRetrain(ctx, reason, count)
}

// Close closes both storage and AMQP connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
