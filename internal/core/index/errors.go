package index

import "fmt"

// DimensionMismatchError means a vector's length does not match the index's
// fixed dimension. This indicates index/model version skew and is fatal for
// the batch: vectors are never truncated or padded to fit.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: index expects %d, got %d", e.Want, e.Got)
}
