// Package poiml identifies persons of interest in the Enron financial and
// e-mail dataset.
//
// The library runs a four stage pipeline over a dataset keyed by person name:
//
//   - Engineering adds ratio_to_poi and ratio_from_poi, the share of a
//     person's sent and received e-mail exchanged with a POI.
//   - Selection ranks features with an AdaBoost classifier and drops those
//     whose importance does not exceed a cutoff (0.01 by default).
//   - Scaling centers every selected feature on its median and divides by
//     its interquartile range.
//   - Tuning runs a stratified k-fold grid search over one classifier family
//     (gradient boosting, logistic regression, or an ANOVA, PCA and logistic
//     regression pipeline), or fits the family's fixed parameters.
//
// # Installation
//
//	go get github.com/YuminosukeSato/poiml
//
// # Quick Start
//
// The poiid command runs the whole pipeline and writes the classifier,
// the dataset and the feature list:
//
//	poiid run --data final_project_dataset.json --out out
//
// The same run from Go:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/poiml/dataset"
//	    "github.com/YuminosukeSato/poiml/pipeline"
//	)
//
//	func main() {
//	    ds, err := dataset.Load("final_project_dataset.json")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    res, err := pipeline.Run(context.Background(), ds, pipeline.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.Features, res.Tuning.BestScore)
//	}
//
// # Packages
//
//   - dataset: person records, missing values and matrix formatting
//   - features: the engineering, selection and scaling stages
//   - tune: classifier families and the tuning stage
//   - pipeline: stage orchestration
//   - sklearn/...: estimators, grid search and cross-validation
//   - pkg/config, pkg/log, pkg/errors, pkg/monitor, pkg/artifact: ambient support
//
// # Error Handling
//
// Errors carry stack traces and typed details. Use errors.As to inspect them:
//
//	var sErr *errors.StratificationError
//	if errors.As(err, &sErr) {
//	    fmt.Println("reduce folds to at most", sErr.ClassMembers)
//	}
//
// # License
//
// poiml is released under the MIT License.
package poiml
