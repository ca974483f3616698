package tfrecord

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Feature is one tf.train.Feature. Exactly one of the lists is used.
type Feature struct {
	Bytes  [][]byte
	Floats []float32
	Int64s []int64
}

// Example is a tf.train.Example: a map of named features
type Example struct {
	Features map[string]Feature
}

// NewExample creates an empty Example
func NewExample() *Example {
	return &Example{Features: map[string]Feature{}}
}

// SetBytes sets a bytes_list feature
func (e *Example) SetBytes(key string, values ...[]byte) *Example {
	e.Features[key] = Feature{Bytes: values}
	return e
}

// SetStrings sets a bytes_list feature from strings
func (e *Example) SetStrings(key string, values ...string) *Example {
	b := make([][]byte, len(values))
	for i, v := range values {
		b[i] = []byte(v)
	}
	return e.SetBytes(key, b...)
}

// SetFloats sets a float_list feature
func (e *Example) SetFloats(key string, values ...float32) *Example {
	if values == nil {
		values = []float32{}
	}
	e.Features[key] = Feature{Floats: values}
	return e
}

// SetInt64s sets an int64_list feature
func (e *Example) SetInt64s(key string, values ...int64) *Example {
	if values == nil {
		values = []int64{}
	}
	e.Features[key] = Feature{Int64s: values}
	return e
}

// field numbers from tensorflow/core/example/{example,feature}.proto
const (
	fieldExampleFeatures protowire.Number = 1
	fieldFeaturesMap     protowire.Number = 1
	fieldMapKey          protowire.Number = 1
	fieldMapValue        protowire.Number = 2
	fieldBytesList       protowire.Number = 1
	fieldFloatList       protowire.Number = 2
	fieldInt64List       protowire.Number = 3
	fieldListValue       protowire.Number = 1
)

// Marshal encodes the example in protobuf wire format. Keys are written in
// sorted order so output is deterministic.
func (e *Example) Marshal() []byte {
	keys := make([]string, 0, len(e.Features))
	for k := range e.Features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var features []byte
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldMapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, marshalFeature(e.Features[k]))

		features = protowire.AppendTag(features, fieldFeaturesMap, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}

	var out []byte
	out = protowire.AppendTag(out, fieldExampleFeatures, protowire.BytesType)
	out = protowire.AppendBytes(out, features)
	return out
}

func marshalFeature(f Feature) []byte {
	var list []byte
	var kind protowire.Number
	switch {
	case f.Floats != nil:
		kind = fieldFloatList
		var packed []byte
		for _, v := range f.Floats {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
	case f.Int64s != nil:
		kind = fieldInt64List
		var packed []byte
		for _, v := range f.Int64s {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
	default:
		kind = fieldBytesList
		for _, v := range f.Bytes {
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, v)
		}
	}

	var out []byte
	out = protowire.AppendTag(out, kind, protowire.BytesType)
	out = protowire.AppendBytes(out, list)
	return out
}

// ParseExample decodes a tf.train.Example. Unknown fields are skipped.
func ParseExample(data []byte) (*Example, error) {
	e := NewExample()
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != fieldExampleFeatures || typ != protowire.BytesType {
			return nil
		}
		return walk(v, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != fieldFeaturesMap || typ != protowire.BytesType {
				return nil
			}
			return parseEntry(e, entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func parseEntry(e *Example, entry []byte) error {
	var key string
	var feature Feature
	err := walk(entry, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldMapKey:
			key = string(v)
		case fieldMapValue:
			f, err := parseFeature(v)
			if err != nil {
				return err
			}
			feature = f
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.Features[key] = feature
	return nil
}

func parseFeature(data []byte) (Feature, error) {
	var f Feature
	err := walk(data, func(kind protowire.Number, _ protowire.Type, list []byte) error {
		return walk(list, func(num protowire.Number, _ protowire.Type, v []byte) error {
			if num != fieldListValue {
				return nil
			}
			switch kind {
			case fieldBytesList:
				f.Bytes = append(f.Bytes, append([]byte(nil), v...))
			case fieldFloatList:
				// unpacked values arrive one per field, packed ones share a payload
				for len(v) > 0 {
					bits, n := protowire.ConsumeFixed32(v)
					if n < 0 {
						return protowire.ParseError(n)
					}
					f.Floats = append(f.Floats, math.Float32frombits(bits))
					v = v[n:]
				}
			case fieldInt64List:
				for len(v) > 0 {
					x, n := protowire.ConsumeVarint(v)
					if n < 0 {
						return protowire.ParseError(n)
					}
					f.Int64s = append(f.Int64s, int64(x))
					v = v[n:]
				}
			}
			return nil
		})
	})
	return f, err
}

// walk calls fn for every field in a message. For length-delimited fields v
// is the payload; for scalar fields v holds the raw encoded value.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("parse example tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		var v []byte
		switch typ {
		case protowire.BytesType:
			b, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("parse example field %d: %w", num, protowire.ParseError(m))
			}
			v, n = b, m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("parse example field %d: %w", num, protowire.ParseError(m))
			}
			v, n = data[:m], m
		}
		if err := fn(num, typ, v); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
