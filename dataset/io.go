package dataset

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/YuminosukeSato/poiml/pkg/errors"
	"github.com/YuminosukeSato/poiml/pkg/log"
)

// Decode reads a JSON object of entity id to {feature: value}. Numbers,
// booleans, null and "NaN" are accepted. A feature holding text for any
// entity (email_address in the Enron data) is dropped from every record with
// a DataConversionWarning.
func Decode(r io.Reader) (*Dataset, error) {
	var doc map[string]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode dataset")
	}
	if len(doc) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "decode dataset")
	}

	textual := map[string]struct{}{}
	raw := make(map[string]Record, len(doc))
	for id, fields := range doc {
		rec := make(Record, len(fields))
		for name, msg := range fields {
			var v Value
			if err := json.Unmarshal(msg, &v); err != nil {
				var nn *NonNumericError
				if errors.As(err, &nn) {
					textual[name] = struct{}{}
					continue
				}
				return nil, errors.Wrapf(err, "decode dataset: %s.%s", id, name)
			}
			rec[name] = v
		}
		raw[id] = rec
	}

	if len(textual) > 0 {
		dropped := make([]string, 0, len(textual))
		for name := range textual {
			dropped = append(dropped, name)
			for _, rec := range raw {
				delete(rec, name)
			}
		}
		sort.Strings(dropped)
		for _, name := range dropped {
			errors.Warn(errors.NewDataConversionWarning("string", "float64", name+" is not numeric and was dropped"))
		}
	}

	ds := New(raw)
	log.GetLoggerWithName("dataset").Debug("dataset decoded",
		log.EntitiesKey, ds.Len(),
		log.FeaturesKey, len(ds.Features()),
	)
	return ds, nil
}

// Load reads a dataset file written by Encode or exported from the
// original pickled dictionary.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes the dataset as indented JSON, missing values as "NaN".
func Encode(w io.Writer, d *Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(d.records), "encode dataset")
}
