package service

import (
	"errors"
	"log/slog"

	"invencea-api/internal/repository"
	"invencea-api/pkg/apierror"
)

// storageFailure logs err with the failing operation and returns the generic
// 500 the caller sees. Storage details never reach the client.
func storageFailure(log *slog.Logger, op string, err error) *apierror.Error {
	log.Error("storage failure", "op", op, "error", err)
	return apierror.InternalError("")
}

// ledgerError maps errors raised by the stock primitives.
func ledgerError(log *slog.Logger, op string, err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var stock *repository.InsufficientStockError
	if errors.As(err, &stock) {
		return apierror.InsufficientStock(stock.ItemID, stock.ItemName, stock.Requested, stock.Available)
	}

	var under *repository.UnderflowError
	if errors.As(err, &under) {
		return apierror.InvalidState("return exceeds borrowed quantity").
			WithField("item_id", under.ItemID).
			WithField("requested", under.Released).
			WithField("borrowed", under.Borrowed)
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound("Item not found")
	case errors.Is(err, repository.ErrConflict):
		return apierror.Conflict("Record was modified concurrently, retry")
	}
	return storageFailure(log, op, err)
}
