// Package worker refits the forecast model in response to retrain
// requests published by the API.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartbudget/internal/amqp"
	"smartbudget/internal/analytics"
	"smartbudget/internal/storage"
)

// RetrainWorker consumes retrain messages and refits the forecaster on
// the full stored history.
type RetrainWorker struct {
	storage    *storage.SQLiteRepository
	forecaster *analytics.Forecaster
	client     *amqp.Client
}

func NewRetrainWorker(storage *storage.SQLiteRepository, forecaster *analytics.Forecaster, client *amqp.Client) *RetrainWorker {
	return &RetrainWorker{
		storage:    storage,
		forecaster: forecaster,
		client:     client,
	}
}

// Run consumes retrain requests until ctx is cancelled.
func (w *RetrainWorker) Run(ctx context.Context) error {
	return w.client.ConsumeRetrain(ctx, func(msg *amqp.RetrainMessage) error {
		return w.HandleRetrainMessage(ctx, msg)
	})
}

// HandleRetrainMessage refits the model on the current history. An
// insufficient history is acknowledged rather than requeued, since
// redelivery cannot add records.
func (w *RetrainWorker) HandleRetrainMessage(ctx context.Context, msg *amqp.RetrainMessage) error {
	slog.InfoContext(ctx, "Processing retrain message",
		"reason", msg.Reason,
		"expense_count", msg.ExpenseCount)

	expenses, err := w.storage.ListExpenses(ctx, storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("load expense history: %w", err)
	}

	result, err := w.forecaster.Train(expenses)
	if err != nil {
		var insufficient *analytics.InsufficientDataError
		if errors.As(err, &insufficient) {
			slog.WarnContext(ctx, "Not enough history to retrain, skipping",
				"current", insufficient.Current,
				"required", insufficient.Required)
			return nil
		}
		return fmt.Errorf("train model: %w", err)
	}

	slog.InfoContext(ctx, "Model retrained",
		"samples", result.Samples,
		"r2_score", result.R2Score)

	return nil
}

// StartupTrainCheck refits the model once at startup when enough
// history exists. This recovers from retrain messages missed while the
// worker was down.
func (w *RetrainWorker) StartupTrainCheck(ctx context.Context) error {
	count, err := w.storage.CountExpenses(ctx)
	if err != nil {
		return fmt.Errorf("count expenses for startup check: %w", err)
	}

	if count < analytics.TrainMinRecords {
		slog.InfoContext(ctx, "Not enough history for startup training",
			"count", count,
			"required", analytics.TrainMinRecords)
		return nil
	}

	expenses, err := w.storage.ListExpenses(ctx, storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("load expense history: %w", err)
	}

	result, err := w.forecaster.Train(expenses)
	if err != nil {
		return fmt.Errorf("startup training: %w", err)
	}

	slog.InfoContext(ctx, "Startup training completed",
		"samples", result.Samples,
		"r2_score", result.R2Score)

	return nil
}
