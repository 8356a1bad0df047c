package dataset

import (
	"archive/zip"
	"io"
	"sort"
	"strings"

	"github.com/sbinet/npyio"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

// File is an open input archive. A table named T is the set of 1-D arrays
// stored as T/<column>.npy inside the archive.
type File struct {
	Path string
	zr   *zip.ReadCloser
}

// Table holds the columns of one table, converted to float64.
type Table struct {
	Name    string
	Path    string
	Columns map[string][]float64
	Rows    int
}

// ColumnNames returns the column names in sorted order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenFile opens an input archive. The returned File must be closed.
func OpenFile(path string) (*File, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, scerr.NewFileOpenError(path, err)
	}
	return &File{Path: path, zr: zr}, nil
}

// Close releases the archive.
func (f *File) Close() error {
	if f.zr == nil {
		return nil
	}
	err := f.zr.Close()
	f.zr = nil
	return err
}

// Table reads every column of the named table. It returns a
// TreeNotFoundError when the archive holds no array under name/.
func (f *File) Table(name string) (*Table, error) {
	prefix := name + "/"
	table := &Table{Name: name, Path: f.Path, Columns: make(map[string][]float64), Rows: -1}

	for _, entry := range f.zr.File {
		if !strings.HasPrefix(entry.Name, prefix) || !strings.HasSuffix(entry.Name, ".npy") {
			continue
		}
		column := strings.TrimSuffix(strings.TrimPrefix(entry.Name, prefix), ".npy")
		if column == "" || strings.Contains(column, "/") {
			continue
		}

		values, err := readColumn(entry)
		if err != nil {
			return nil, scerr.Wrapf(err, "reading column %s of %s in %s", column, name, f.Path)
		}
		if table.Rows >= 0 && len(values) != table.Rows {
			return nil, scerr.Wrapf(scerr.NewDimensionError("read table "+name, table.Rows, len(values), 0),
				"column %s in %s", column, f.Path)
		}
		table.Rows = len(values)
		table.Columns[column] = values
	}

	if len(table.Columns) == 0 {
		return nil, scerr.NewTreeNotFoundError(name, f.Path)
	}
	return table, nil
}

func readColumn(entry *zip.File) ([]float64, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decodeColumn(rc)
}

// decodeColumn reads one .npy array and converts it to float64.
func decodeColumn(r io.Reader) ([]float64, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}
	if shape := npy.Header.Descr.Shape; len(shape) > 1 {
		return nil, scerr.Newf("expected a 1-D array, got shape %v", shape)
	}

	switch dtype := npy.Header.Descr.Type; dtype {
	case "<f8", "f8":
		var v []float64
		err = npy.Read(&v)
		return v, err
	case "<f4", "f4":
		var v []float32
		if err = npy.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "<i8", "i8":
		var v []int64
		if err = npy.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "<i4", "i4":
		var v []int32
		if err = npy.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "|b1", "b1":
		var v []bool
		if err = npy.Read(&v); err != nil {
			return nil, err
		}
		out := make([]float64, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	default:
		return nil, scerr.Newf("unsupported dtype %q", dtype)
	}
}

func convert[T float32 | int64 | int32](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
