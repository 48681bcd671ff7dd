// Package artifact writes the three files a run hands over for evaluation:
// the classifier snapshot, the final dataset and the feature list.
package artifact

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/poiml/core/model"
	"github.com/YuminosukeSato/poiml/dataset"
	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// File names inside the output directory.
const (
	ClassifierFile  = "my_classifier.json"
	DatasetFile     = "my_dataset.json"
	FeatureListFile = "my_feature_list.json"
)

// Bundle is what Load reads back.
type Bundle struct {
	Classifier *model.ModelWeights
	Dataset    *dataset.Dataset
	Features   []string
}

// Dump writes clf, ds and features into dir, creating it if needed.
func Dump(dir string, clf model.WeightExporter, ds *dataset.Dataset, features []string) error {
	if clf == nil || ds == nil {
		return errors.NewValidationError("artifact", "classifier and dataset are required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", dir)
	}

	weights, err := clf.ExportWeights()
	if err != nil {
		return errors.Wrap(err, "export classifier")
	}
	if err := weights.Validate(); err != nil {
		return errors.Wrap(err, "export classifier")
	}
	data, err := weights.ToJSON()
	if err != nil {
		return errors.Wrap(err, "marshal classifier")
	}
	if err := write(dir, ClassifierFile, data); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := dataset.Encode(&buf, ds); err != nil {
		return err
	}
	if err := write(dir, DatasetFile, buf.Bytes()); err != nil {
		return err
	}

	data, err = json.MarshalIndent(features, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal feature list")
	}
	return write(dir, FeatureListFile, data)
}

func write(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// Load reads a directory written by Dump.
func Load(dir string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, ClassifierFile))
	if err != nil {
		return nil, errors.Wrap(err, "read classifier")
	}
	weights := &model.ModelWeights{}
	if err := weights.FromJSON(data); err != nil {
		return nil, errors.Wrap(err, "decode classifier")
	}

	ds, err := dataset.Load(filepath.Join(dir, DatasetFile))
	if err != nil {
		return nil, err
	}

	data, err = os.ReadFile(filepath.Join(dir, FeatureListFile))
	if err != nil {
		return nil, errors.Wrap(err, "read feature list")
	}
	var features []string
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, errors.Wrap(err, "decode feature list")
	}
	return &Bundle{Classifier: weights, Dataset: ds, Features: features}, nil
}
