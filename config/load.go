package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pkg/log"
)

// Load reads the configuration file at path. An unreadable file, a malformed
// YAML document, or a value that does not parse as its key's type yields a
// ConfigReadError.
func Load(path string) (*TrainingConfig, error) {
	logger := log.GetLoggerWithName("config")
	logger.Info("Reading configuration file", log.ConfigPathKey, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scerr.NewConfigReadError(path, "", err.Error())
	}

	var values map[string]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		values, err = parseYAML(data)
		if err != nil {
			return nil, scerr.NewConfigReadError(path, "", err.Error())
		}
	default:
		values = parseTEnv(data)
	}

	cfg, err := fromValues(path, values)
	if err != nil {
		return nil, err
	}
	cfg.Log(logger)
	return cfg, nil
}

// Parse builds a configuration from TEnv-formatted content. path is only used
// in error messages.
func Parse(path string, content []byte) (*TrainingConfig, error) {
	return fromValues(path, parseTEnv(content))
}

// parseTEnv reads "Key: value" or "Key=value" lines. The first ':' or '='
// separates key from value; blank lines and lines starting with '#' are
// skipped. A later occurrence of a key overrides an earlier one.
func parseTEnv(data []byte) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := strings.IndexAny(line, ":=")
		if sep <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:sep])
		values[key] = strings.TrimSpace(line[sep+1:])
	}
	return values
}

// parseYAML reads a flat mapping. Sequences are joined with ':' so that
// InputFiles and Variables may be written as YAML lists.
func parseYAML(data []byte) (map[string]string, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case nil:
			values[key] = ""
		case []interface{}:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprint(item)
			}
			values[key] = strings.Join(parts, ":")
		case map[string]interface{}:
			return nil, scerr.Newf("key %q: nested mappings are not supported", key)
		default:
			values[key] = fmt.Sprint(val)
		}
	}
	return values, nil
}

func fromValues(path string, values map[string]string) (*TrainingConfig, error) {
	cfg := &TrainingConfig{Path: path}
	var errs []error
	forEachField(cfg, func(key string, field reflect.Value) {
		raw, ok := values[key]
		if !ok {
			return
		}
		if err := setField(field, raw); err != nil {
			errs = append(errs, scerr.NewConfigReadError(path, key, err.Error()))
		}
	})
	if len(errs) > 0 {
		return nil, scerr.Join(errs...)
	}
	return cfg, nil
}

// forEachField visits every field carrying a cfg tag, in declaration order.
func forEachField(cfg *TrainingConfig, fn func(key string, field reflect.Value)) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("cfg")
		if key == "" || key == "-" {
			continue
		}
		fn(key, v.Field(i))
	}
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Float64:
		if raw == "" {
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return scerr.Newf("%q is not a number", raw)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return scerr.Newf("unsupported field kind %s", field.Kind())
	}
	return nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	}
	return false, scerr.Newf("%q is not a boolean", raw)
}
