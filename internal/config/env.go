package config

import (
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields of cfg from variables named after their YAML
// keys: GCLFLOW_MAX_EPOCH sets max_epoch, GCLFLOW_STORE_BACKEND sets
// store.backend. Values are decoded as YAML scalars or flow sequences, so
// GCLFLOW_EVAL_MILESTONES="[10, 20]" works.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	return applyEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix, lookup)
}

// EnvKeys lists every variable ApplyEnv consults, in field order.
func EnvKeys() []string {
	var keys []string
	_ = applyEnv(reflect.ValueOf(&Config{}).Elem(), EnvPrefix, func(key string) (string, bool) {
		keys = append(keys, key)
		return "", false
	})
	return keys
}

func applyEnv(v reflect.Value, prefix string, lookup LookupFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			continue
		}
		fv := v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			next := prefix
			if opts != "inline" {
				next = prefix + strings.ToUpper(name) + "_"
			}
			if err := applyEnv(fv, next, lookup); err != nil {
				return err
			}
			continue
		}

		key := prefix + strings.ToUpper(name)
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := decodeScalar(raw, fv); err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrEnvOverride, key, raw, err)
		}
	}
	return nil
}

func decodeScalar(raw string, fv reflect.Value) error {
	if fv.Kind() == reflect.String {
		// strings are taken verbatim so "1e-3" or "yes" stay text
		fv.SetString(raw)
		return nil
	}
	target := reflect.New(fv.Type())
	if err := yaml.Unmarshal([]byte(raw), target.Interface()); err != nil {
		return err
	}
	fv.Set(target.Elem())
	return nil
}
