// Package features implements the first three pipeline stages: e-mail ratio
// engineering, importance-based feature selection and robust scaling. Each
// stage takes a dataset and returns a new one.
package features

import (
	"github.com/YuminosukeSato/poiml/dataset"
	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
)

// Engineered feature names and the counters they are derived from.
const (
	RatioToPOI   = "ratio_to_poi"
	RatioFromPOI = "ratio_from_poi"

	FromThisPersonToPOI = "from_this_person_to_poi"
	FromMessages        = "from_messages"
	FromPOIToThisPerson = "from_poi_to_this_person"
	ToMessages          = "to_messages"
)

// EmailRatios adds ratio_to_poi (from_this_person_to_poi / from_messages) and
// ratio_from_poi (from_poi_to_this_person / to_messages). A ratio is 0 when
// either operand is missing or the quotient is undefined.
func EmailRatios(ds *dataset.Dataset) *dataset.Dataset {
	out := ds.
		WithColumn(RatioToPOI, func(r dataset.Record) dataset.Value {
			return ratio(r[FromThisPersonToPOI], r[FromMessages])
		}).
		WithColumn(RatioFromPOI, func(r dataset.Record) dataset.Value {
			return ratio(r[FromPOIToThisPerson], r[ToMessages])
		})

	log.GetLoggerWithName("features").Debug("email ratios added",
		log.StageKey, log.StageEngineering,
		log.EntitiesKey, out.Len(),
	)
	return out
}

func ratio(num, den dataset.Value) dataset.Value {
	n, ok := num.Float()
	if !ok {
		return dataset.Num(0)
	}
	d, ok := den.Float()
	if !ok {
		return dataset.Num(0)
	}
	return dataset.Num(errors.SafeDivide(n, d))
}
