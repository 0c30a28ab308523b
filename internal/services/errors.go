package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/launchpad/api/internal/repositories"
)

var (
	// ErrProductInvalidInput indicates the caller supplied invalid identifiers or fields.
	ErrProductInvalidInput = errors.New("product: invalid input")
	// ErrProductNotFound indicates the product does not exist or is not visible to the caller.
	ErrProductNotFound = errors.New("product: not found")
	// ErrProductSaveInProgress indicates another save for the same product has not finished.
	ErrProductSaveInProgress = errors.New("product: save in progress")
	// ErrProductUnavailable indicates the document store could not be reached.
	ErrProductUnavailable = errors.New("product: unavailable")
	// ErrProductConflict indicates a concurrent modification rejected the write.
	ErrProductConflict = errors.New("product: conflict")
)

// mapRepositoryError converts repository failures into the service sentinel errors.
func mapRepositoryError(err error, notFound, unavailable, conflict error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFound != nil:
			return notFound
		case repoErr.IsConflict() && conflict != nil:
			return fmt.Errorf("%w: %v", conflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", unavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", unavailable, err)
}

func mapProductError(err error) error {
	return mapRepositoryError(err, ErrProductNotFound, ErrProductUnavailable, ErrProductConflict)
}
