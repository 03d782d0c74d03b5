// Package classifier defines the per-square piece recognition capability the
// pipeline depends on. Implementations live in subpackages.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/park285/chessfen/internal/domain"
)

// ErrUnavailable means the classifier cannot serve requests at all, for
// example because the model is not loaded or its server is unreachable.
var ErrUnavailable = errors.New("classifier: unavailable")

// Classifier labels one cell image. It may be wrong but must not fail for a
// well-formed image. An error means the capability itself is unavailable.
// Implementations are shared across requests and must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, cell image.Image) (domain.PieceLabel, error)
}

// BatchClassifier labels many cells in one call.
type BatchClassifier interface {
	Classifier
	ClassifyBatch(ctx context.Context, cells []image.Image) ([]domain.PieceLabel, error)
}

// HealthChecker is implemented by classifiers backed by an external service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ClassifyAll labels cells, using the batch path when the classifier offers one.
func ClassifyAll(ctx context.Context, c Classifier, cells []image.Image) ([]domain.PieceLabel, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no classifier configured", ErrUnavailable)
	}
	if bc, ok := c.(BatchClassifier); ok {
		labels, err := bc.ClassifyBatch(ctx, cells)
		if err != nil {
			return nil, err
		}
		if len(labels) != len(cells) {
			return nil, fmt.Errorf("%w: got %d labels for %d cells", ErrUnavailable, len(labels), len(cells))
		}
		return labels, nil
	}
	labels := make([]domain.PieceLabel, len(cells))
	for i, cell := range cells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label, err := c.Classify(ctx, cell)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}
	return labels, nil
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, cell image.Image) (domain.PieceLabel, error)

func (f Func) Classify(ctx context.Context, cell image.Image) (domain.PieceLabel, error) {
	return f(ctx, cell)
}
