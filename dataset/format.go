package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// FormatOptions controls row filtering in FeatureFormat.
type FormatOptions struct {
	// KeepAllZeroes keeps rows whose predictor columns are all zero. By
	// default those rows are dropped.
	KeepAllZeroes bool
	// DropAnyZero drops rows where any predictor column is zero.
	DropAnyZero bool
}

// FeatureFormat builds a numeric matrix with one column per name in
// features and one row per entity in sorted key order. Missing becomes 0.
// The first column is treated as the label and ignored by row filtering.
func FeatureFormat(d *Dataset, features []string, opts FormatOptions) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, errors.NewValidationError("features", "at least one feature is required", features)
	}
	for _, f := range features {
		if !d.HasFeature(f) {
			return nil, errors.NewValidationError("features", "unknown feature", f)
		}
	}

	var rows []float64
	n := 0
	for _, k := range d.keys {
		rec := d.records[k]
		row := make([]float64, len(features))
		allZero, anyZero := true, false
		for j, f := range features {
			row[j] = rec[f].OrZero()
			if j == 0 {
				continue
			}
			if row[j] != 0 {
				allZero = false
			} else {
				anyZero = true
			}
		}
		if len(features) > 1 {
			if allZero && !opts.KeepAllZeroes {
				continue
			}
			if anyZero && opts.DropAnyZero {
				continue
			}
		}
		rows = append(rows, row...)
		n++
	}
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "feature format")
	}
	return mat.NewDense(n, len(features), rows), nil
}

// TargetFeatureSplit splits a formatted matrix into the label column (n×1)
// and the predictor columns.
func TargetFeatureSplit(data *mat.Dense) (y, X *mat.Dense) {
	r, c := data.Dims()
	y = mat.NewDense(r, 1, nil)
	y.Copy(data.Slice(0, r, 0, 1))
	if c == 1 {
		return y, nil
	}
	X = mat.NewDense(r, c-1, nil)
	X.Copy(data.Slice(0, r, 1, c))
	return y, X
}
