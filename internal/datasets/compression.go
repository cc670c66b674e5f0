package datasets

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error {
	return rc.close()
}

// openData opens path and decompresses it according to compression, which is
// one of CompressionSuffixes or empty. Archives must hold exactly one file.
func openData(path, compression string) (io.ReadCloser, error) {
	if compression == "zip" {
		return openZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader
	closeAll := f.Close
	switch compression {
	case "":
		return f, nil
	case "gzip":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		r = gz
		closeAll = func() error { return errors.Join(gz.Close(), f.Close()) }
	case "bz2":
		r = bzip2.NewReader(f)
	case "zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd: %w", err)
		}
		r = dec
		closeAll = func() error { dec.Close(); return f.Close() }
	case "xz":
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz: %w", err)
		}
		r = xr
	case "tar":
		tr := tar.NewReader(f)
		if err := singleTarMember(tr); err != nil {
			f.Close()
			return nil, err
		}
		r = tr
	default:
		f.Close()
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
	return readCloser{Reader: r, close: closeAll}, nil
}

func openZip(path string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("zip: %w", err)
	}

	var members []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			members = append(members, f)
		}
	}
	if len(members) != 1 {
		zr.Close()
		return nil, fmt.Errorf("zip: expected a single file in %q, found %d", path, len(members))
	}

	rc, err := members[0].Open()
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("zip: %w", err)
	}
	return readCloser{Reader: rc, close: func() error { return errors.Join(rc.Close(), zr.Close()) }}, nil
}

// singleTarMember advances tr to the first regular file.
func singleTarMember(tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("tar: archive holds no files")
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			return nil
		}
	}
}
