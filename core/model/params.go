package model

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// DecodeParams decodes a hyperparameter map onto target, a pointer to a
// struct tagged with `mapstructure:"name"`. Values are weakly typed so grids
// loaded from YAML (ints for floats, strings for bools) decode cleanly.
// Unknown keys are rejected.
func DecodeParams(op string, params map[string]interface{}, target interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return errors.Wrap(err, op)
	}
	if err := dec.Decode(params); err != nil {
		return errors.NewValueError(op, err.Error())
	}
	return nil
}

// EncodeParams is the inverse of DecodeParams: it flattens a tagged struct
// into a parameter map.
func EncodeParams(source interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	// Decoding a struct into a map cannot fail for the plain value structs
	// estimators use.
	_ = mapstructure.Decode(source, &out)
	return out
}

// FormatParams renders params with sorted keys, for logs and candidate ids.
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %v", k, params[k])
	}
	return s + "}"
}
