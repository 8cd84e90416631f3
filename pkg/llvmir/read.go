package llvmir

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/llvmlines/pkg/textutil"
)

// lz4Ext marks IR files stored as LZ4 frames.
const lz4Ext = ".lz4"

var (
	// ErrBinaryInput indicates bitcode or other non-text input.
	ErrBinaryInput = errors.New("not textual LLVM IR (bitcode is not supported)")
	// ErrInputTooLarge indicates the input exceeds the configured size limit.
	ErrInputTooLarge = errors.New("input exceeds maximum size")
)

// ReadOptions controls [ReadFile].
type ReadOptions struct {
	// MaxSize rejects inputs larger than this many bytes after
	// decompression. Zero disables the limit.
	MaxSize uint64
}

// ReadFile loads a textual IR file. Files ending in ".lz4" are decoded as
// LZ4 frames. Returned errors are prefixed with the path.
func ReadFile(path string, opts ReadOptions) ([]byte, error) {
	data, err := readFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return data, nil
}

// Read loads textual IR from r, applying the same checks as [ReadFile].
func Read(r io.Reader, opts ReadOptions) ([]byte, error) {
	if opts.MaxSize > 0 {
		r = io.LimitReader(r, int64(min(opts.MaxSize, uint64(1<<62)))+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if opts.MaxSize > 0 && uint64(len(data)) > opts.MaxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrInputTooLarge, opts.MaxSize)
	}

	if textutil.IsBitcode(data) || textutil.IsBinary(data) {
		return nil, ErrBinaryInput
	}

	return data, nil
}

func readFile(path string, opts ReadOptions) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, unwrapPathError(err)
	}

	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == lz4Ext {
		r = lz4.NewReader(f)
	}

	return Read(r, opts)
}

// unwrapPathError drops the *fs.PathError wrapper so the path is not
// reported twice.
func unwrapPathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}

	return err
}
