package geometry

import (
	"fmt"
	"math"
)

// RoundByFactor returns the multiple of factor nearest to number.
// Ties resolve half-to-even, so 42 with factor 28 yields 56 and 14 yields 0.
func RoundByFactor(number float64, factor int) (int, error) {
	if err := checkFactor(factor); err != nil {
		return 0, err
	}
	return roundBy(number, factor), nil
}

// CeilByFactor returns the smallest multiple of factor that is >= number.
func CeilByFactor(number float64, factor int) (int, error) {
	if err := checkFactor(factor); err != nil {
		return 0, err
	}
	return ceilBy(number, factor), nil
}

// FloorByFactor returns the largest multiple of factor that is <= number.
func FloorByFactor(number float64, factor int) (int, error) {
	if err := checkFactor(factor); err != nil {
		return 0, err
	}
	return floorBy(number, factor), nil
}

func checkFactor(factor int) error {
	if factor <= 0 {
		return fmt.Errorf("%w: factor must be positive, got %d", ErrInvalidArgument, factor)
	}
	return nil
}

func roundBy(number float64, factor int) int {
	return int(math.RoundToEven(number/float64(factor))) * factor
}

func ceilBy(number float64, factor int) int {
	return int(math.Ceil(number/float64(factor))) * factor
}

func floorBy(number float64, factor int) int {
	return int(math.Floor(number/float64(factor))) * factor
}
