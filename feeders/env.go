package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
)

// EnvFeeder reads environment variables named PREFIX_<TAG> (or bare
// <TAG> when Prefix is empty) into fields tagged `env`.
type EnvFeeder struct {
	Prefix string
}

// NewEnvFeeder creates an EnvFeeder with the given prefix.
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix}
}

// Feed implements Feeder. Unset variables leave fields untouched.
func (f EnvFeeder) Feed(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidStructure
	}
	rv = rv.Elem()
	rt := rv.Type()

	prefix := strings.ToUpper(f.Prefix)
	for i := 0; i < rt.NumField(); i++ {
		tag, ok := rt.Field(i).Tag.Lookup("env")
		if !ok {
			continue
		}
		name := strings.ToUpper(tag)
		if prefix != "" {
			name = prefix + "_" + name
		}
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(rv.Field(i), value); err != nil {
			return fmt.Errorf("env feeder: field '%s': %w", rt.Field(i).Name, err)
		}
	}
	return nil
}
