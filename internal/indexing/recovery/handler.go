package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/infra/storage"
)

// Handler stores rejected batch inserts in the dead-letter repository.
type Handler struct {
	repo storage.FailedFlushRepository
}

// NewHandler creates a new dead-letter handler.
func NewHandler(repo storage.FailedFlushRepository) *Handler {
	return &Handler{repo: repo}
}

// HandleFailure is called by the accumulator when the sink rejects a category.
// It creates a new FailedFlush entry holding the encoded records.
func (h *Handler) HandleFailure(
	ctx context.Context,
	procedure string,
	block uint64,
	records any,
	count int,
	cause error,
) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode rejected records: %w", err)
	}

	entry := &domain.FailedFlush{
		ID:        uuid.New().String(),
		Procedure: procedure,
		Block:     block,
		Records:   count,
		Payload:   payload,
		Error:     cause.Error(),
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to add failed flush: %w", err)
	}
	return nil
}

// Pending returns the number of entries waiting for operator attention.
func (h *Handler) Pending(ctx context.Context) (int, error) {
	return h.repo.Count(ctx)
}
