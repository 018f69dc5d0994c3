// Package feeders provides configuration feeders that populate config
// structs from YAML files, TOML files, and environment variables.
package feeders

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/golobby/cast"
)

// Static errors for feeders.
var (
	ErrInvalidStructure = errors.New("feeder target must be a pointer to a struct")
	ErrInvalidDuration  = errors.New("cannot convert value to duration")
)

// Feeder populates fields of a config struct from one source. Feeders
// only touch fields their source has values for, so they compose in
// order with later feeders overriding earlier ones.
type Feeder interface {
	Feed(target any) error
}

var durationType = reflect.TypeOf(time.Duration(0))

// feedMap sets tagged struct fields from a decoded key/value map.
func feedMap(values map[string]any, target any, tag string) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidStructure
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		name, ok := rt.Field(i).Tag.Lookup(tag)
		if !ok {
			continue
		}
		raw, ok := values[name]
		if !ok {
			continue
		}
		if err := setFieldValue(rv.Field(i), raw); err != nil {
			return fmt.Errorf("field '%s': %w", rt.Field(i).Name, err)
		}
	}
	return nil
}

// setFieldValue converts raw to the field's type and sets it. Duration
// fields accept Go duration strings; bare integers are seconds.
func setFieldValue(field reflect.Value, raw any) error {
	if field.Type() == durationType {
		d, err := toDuration(raw)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	converted, err := cast.FromType(fmt.Sprintf("%v", raw), field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(converted))
	return nil
}

func toDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, v)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case uint64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%w: %v (%T)", ErrInvalidDuration, raw, raw)
	}
}
