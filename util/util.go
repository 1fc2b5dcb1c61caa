package util

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"math/big"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

var validate = validator.New()

// ValidateStruct validates the struct against its `validate` tags
func ValidateStruct(val any) error {
	return errors.Wrap(validate.Struct(val), errors.Validation, "")
}

// Decode decodes the input into the output based on json tags
func Decode(input any, output any) error {
	config := &mapstructure.DecoderConfig{
		WeaklyTypedInput:     true,
		Result:               output,
		TagName:              "json",
		IgnoreUntaggedFields: true,
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// JSONString returns a json string of the input
func JSONString(input any) string {
	bits, _ := json.Marshal(input)
	return string(bits)
}

// EncodeIndexValue encodes a value so that its byte ordering follows the value ordering. Numbers of
// any type (json.Number included) encode by value, so 3, int64(3), 3.0 and json.Number("3.0") share
// one encoding, and integers beyond 2^53 keep distinct encodings.
func EncodeIndexValue(value any) []byte {
	if value == nil {
		return []byte("")
	}
	switch value := value.(type) {
	case bool:
		return EncodeIndexValue(cast.ToString(value))
	case string:
		return []byte(value)
	case json.Number:
		r, ok := new(big.Rat).SetString(string(value))
		if !ok {
			return EncodeIndexValue(string(value))
		}
		return encodeRat(r)
	case float64, float32:
		f := cast.ToFloat64(value)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return append(encodeFloat(f), encodeInt(0)...)
		}
		return encodeRat(new(big.Rat).SetFloat64(f))
	case int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		r, _ := new(big.Rat).SetString(cast.ToString(value))
		return encodeRat(r)
	case time.Time:
		return EncodeIndexValue(value.UnixNano())
	case time.Duration:
		return EncodeIndexValue(int64(value))
	default:
		return EncodeIndexValue(JSONString(value))
	}
}

// encodeRat encodes the nearest float64 followed by the exact integer remainder, which is only
// non-zero for integers that a float64 cannot represent
func encodeRat(r *big.Rat) []byte {
	f, _ := r.Float64()
	var remainder int64
	if r.IsInt() && !math.IsInf(f, 0) {
		nearest, _ := new(big.Float).SetFloat64(f).Int(nil)
		diff := new(big.Int).Sub(r.Num(), nearest)
		switch {
		case diff.IsInt64():
			remainder = diff.Int64()
		case diff.Sign() > 0:
			remainder = math.MaxInt64
		default:
			remainder = math.MinInt64
		}
	}
	return append(encodeFloat(f), encodeInt(remainder)...)
}

func encodeFloat(f float64) []byte {
	if f == 0 {
		// -0 and +0 share an encoding
		f = 0
	}
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

func encodeInt(i int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i)^(1<<63))
	return buf
}

// YAMLToJSON converts yaml content to json. json content is returned as is.
func YAMLToJSON(yamlContent []byte) ([]byte, error) {
	if isJSON(string(yamlContent)) {
		return yamlContent, nil
	}
	return yaml.YAMLToJSON(yamlContent)
}

// JSONToYAML converts json content to yaml
func JSONToYAML(jsonContent []byte) ([]byte, error) {
	return yaml.JSONToYAML(jsonContent)
}

func isJSON(str string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(str), &js) == nil
}
