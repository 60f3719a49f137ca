package spool

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/emalign/emsolve/internal/assemble"
	"github.com/emalign/emsolve/internal/sparse"
)

// system.bin layout: magic, version, shape header, then the CSR and vector
// arrays in a fixed order, little-endian throughout.
var systemMagic = [4]byte{'E', 'M', 'S', 'Y'}

const systemVersion uint32 = 1

// writeSystem serializes the numeric arrays of a system.
func writeSystem(path string, sys *assemble.System) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create system file; %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	if _, err := w.Write(systemMagic[:]); err != nil {
		return fmt.Errorf("failed to write system header; %w", err)
	}
	header := []uint64{
		uint64(systemVersion),
		uint64(sys.A.Rows),
		uint64(sys.A.Cols),
		uint64(sys.A.NNZ()),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write system header; %w", err)
	}

	for _, arr := range []any{
		sys.A.Indptr,
		sys.A.Indices,
		sys.A.Data,
		[]float64(sys.Weights),
		sys.RHS,
		[]float64(sys.Reg),
		sys.X0,
	} {
		if err := binary.Write(w, binary.LittleEndian, arr); err != nil {
			return fmt.Errorf("failed to write system arrays; %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush system file; %w", err)
	}
	return nil
}

// readSystem deserializes the numeric arrays of a system. The caller fills
// in the metadata fields from meta.yaml.
func readSystem(path string) (*assemble.System, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open system file; %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read system header; %w", err)
	}
	if magic != systemMagic {
		return nil, fmt.Errorf("not a system file: bad magic %q", magic[:])
	}

	header := make([]uint64, 4)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to read system header; %w", err)
	}
	if uint32(header[0]) != systemVersion {
		return nil, fmt.Errorf("unsupported system file version %d", header[0])
	}

	// The header drives allocations, so check it against the actual file
	// size before trusting the counts.
	rows64, cols64, nnz64 := header[1], header[2], header[3]
	const maxCount = uint64(1) << 32
	if rows64 >= maxCount || cols64 >= maxCount || nnz64 >= maxCount {
		return nil, fmt.Errorf("system file is inconsistent: implausible shape %dx%d nnz %d",
			rows64, cols64, nnz64)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat system file; %w", err)
	}
	want := int64(len(systemMagic)) + 8*4 +
		8*int64((rows64+1)+2*nnz64+2*rows64+2*cols64)
	if info.Size() != want {
		return nil, fmt.Errorf("system file is inconsistent: header describes %d bytes, file has %d",
			want, info.Size())
	}
	rows, cols, nnz := int(rows64), int(cols64), int(nnz64)

	indptr := make([]int64, rows+1)
	indices := make([]int64, nnz)
	data := make([]float64, nnz)
	weights := make([]float64, rows)
	rhs := make([]float64, rows)
	reg := make([]float64, cols)
	x0 := make([]float64, cols)

	for _, arr := range []any{indptr, indices, data, weights, rhs, reg, x0} {
		if err := binary.Read(r, binary.LittleEndian, arr); err != nil {
			return nil, fmt.Errorf("failed to read system arrays; %w", err)
		}
	}

	A, err := sparse.NewCSR(rows, cols, data, indices, indptr)
	if err != nil {
		return nil, fmt.Errorf("system file is inconsistent; %w", err)
	}

	return &assemble.System{
		A:       A,
		Weights: sparse.Diag(weights),
		Reg:     sparse.Diag(reg),
		RHS:     rhs,
		X0:      x0,
	}, nil
}
