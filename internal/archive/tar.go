// Package archive builds gzip-compressed POSIX USTAR archives in memory.
//
// The writer emits the exact header layout expected by standard tar
// readers: one 512-byte header per file, content padded to the next
// 512-byte boundary, and two zero blocks at the end. The header checksum
// is computed in a single pass with the checksum field space-filled, then
// written back as zero-padded octal; recomputing it after any later field
// edit is exactly the bug class this package avoids by building each
// header completely before summing.
package archive

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"sort"
	"time"
)

const blockSize = 512

// Longest path that fits the USTAR name field.
const maxNameLen = 100

// ErrNameTooLong is returned when a path exceeds the USTAR name field.
var ErrNameTooLong = errors.New("path too long for ustar header")

// Build produces a gzip-compressed tar archive of the given path→content
// mapping. Entries are written in sorted path order so identical inputs
// produce identical archives.
func Build(files map[string]string) ([]byte, error) {
	tarBytes, err := BuildTar(files)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(tarBytes); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildTar produces the uncompressed USTAR stream.
func BuildTar(files map[string]string) ([]byte, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	mtime := time.Now().Unix()

	var buf bytes.Buffer
	for _, p := range paths {
		content := files[p]
		hdr, err := header(p, int64(len(content)), mtime)
		if err != nil {
			return nil, err
		}
		buf.Write(hdr)
		buf.WriteString(content)
		if pad := len(content) % blockSize; pad != 0 {
			buf.Write(make([]byte, blockSize-pad))
		}
	}
	// End-of-archive marker: two zero blocks.
	buf.Write(make([]byte, 2*blockSize))
	return buf.Bytes(), nil
}

// header builds one fully populated 512-byte USTAR header.
func header(name string, size, mtime int64) ([]byte, error) {
	if len(name) > maxNameLen {
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}

	h := make([]byte, blockSize)
	copy(h[0:100], name)
	copy(h[100:108], "0000644\x00")           // mode
	copy(h[108:116], "0000000\x00")           // uid
	copy(h[116:124], "0000000\x00")           // gid
	octal(h[124:136], size)                   // size
	octal(h[136:148], mtime)                  // mtime
	copy(h[148:156], "        ")              // checksum: space-filled for the sum pass
	h[156] = '0'                              // typeflag: regular file
	copy(h[257:263], "ustar\x00")             // magic
	copy(h[263:265], "00")                    // version

	// Single checksum pass over the complete header, then write back.
	var sum int64
	for _, b := range h {
		sum += int64(b)
	}
	octalN(h[148:155], sum, 6)
	h[155] = ' ' // per USTAR: octal, NUL, space
	return h, nil
}

// octal writes v as zero-padded octal followed by a NUL, filling the
// whole field.
func octal(field []byte, v int64) {
	octalN(field, v, len(field)-1)
}

// octalN writes v as width-digit zero-padded octal followed by a NUL into
// field (which must hold width+1 bytes).
func octalN(field []byte, v int64, width int) {
	s := fmt.Sprintf("%0*o", width, v)
	copy(field, s)
	field[width] = 0
}
