// Package file stores each identity's dataset as an XLSX workbook in a data
// directory, one file per identity.
package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"protodash/internal/metrics"
	"protodash/internal/sheet"
	"protodash/internal/storage"
)

const backendName = "file"

type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the workbook location for user. Distinct identities always
// map to distinct files.
func (s *Store) Path(user string) string {
	return filepath.Join(s.dir, "dados_acumulados_"+escapeIdentity(user)+".xlsx")
}

const upperhex = "0123456789ABCDEF"

// escapeIdentity keeps ASCII letters, digits, '.', '_' and '-' and
// percent-encodes every other byte, '%' included.
func escapeIdentity(user string) string {
	var b strings.Builder
	for i := 0; i < len(user); i++ {
		c := user[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '.', c == '_', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

func (s *Store) Load(ctx context.Context, user string) (metrics.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(user))
	if errors.Is(err, os.ErrNotExist) {
		return metrics.Dataset{}, nil
	}
	if err != nil {
		return nil, storage.Unavailable(backendName, "load", user, err)
	}
	rows, err := sheet.ReadXLSX(bytes.NewReader(data))
	if err != nil {
		return nil, storage.Unavailable(backendName, "load", user, err)
	}
	return metrics.Normalize(rows), nil
}

// Save writes to a temporary file next to the target and renames it over the
// previous workbook.
func (s *Store) Save(ctx context.Context, user string, ds metrics.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.write(user, ds); err != nil {
		return storage.Unavailable(backendName, "save", user, err)
	}
	return nil
}

func (s *Store) write(user string, ds metrics.Dataset) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".protodash-*.xlsx")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := sheet.WriteXLSX(tmp, ds); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(user))
}
