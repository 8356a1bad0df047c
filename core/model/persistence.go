// Package model persists trained artifacts. Values are encoded as gob or
// indented json and written transactionally: the content goes to a temporary
// file in the destination directory which is renamed over the target only
// after a successful encode and sync.
package model

import (
	"encoding/gob"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Format selects the on-disk encoding.
type Format string

const (
	// FormatJSON encodes with encoding/json, indented.
	FormatJSON Format = "json"
	// FormatGob encodes with encoding/gob.
	FormatGob Format = "gob"
)

// ParseFormat parses a case-insensitive format name. The empty string means json.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatGob:
		return FormatGob, nil
	default:
		return "", errors.Newf("unknown output format %q (expected json or gob)", s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// SaveModelToWriter encodes v to w.
func SaveModelToWriter(v interface{}, w io.Writer, format Format) error {
	switch format {
	case FormatGob:
		if err := gob.NewEncoder(w).Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode model")
		}
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode model")
		}
	default:
		return errors.Newf("unsupported format %q", format)
	}
	return nil
}

// LoadModelFromReader decodes r into v, which must be a pointer.
func LoadModelFromReader(v interface{}, r io.Reader, format Format) error {
	var err error
	switch format {
	case FormatGob:
		err = gob.NewDecoder(r).Decode(v)
	case FormatJSON:
		err = json.NewDecoder(r).Decode(v)
	default:
		return errors.Newf("unsupported format %q", format)
	}
	if err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// SaveModel writes v to filename. The destination is either fully written or
// left untouched.
func SaveModel(v interface{}, filename string, format Format) (err error) {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = SaveModelToWriter(v, tmp, format); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync temporary file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temporary file")
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrap(err, "failed to move artifact into place")
	}
	return nil
}

// LoadModel reads filename into v, which must be a pointer.
func LoadModel(v interface{}, filename string, format Format) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return LoadModelFromReader(v, file, format)
}
