package registry

import (
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type textFile struct {
	io.Reader
	f *os.File
}

func (t *textFile) Close() error { return t.f.Close() }

// openText opens a UTF-8 text file, dropping a leading byte order mark.
// UTF-16 files announced by their BOM are decoded to UTF-8.
func openText(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	bom := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return &textFile{Reader: transform.NewReader(f, bom), f: f}, nil
}
