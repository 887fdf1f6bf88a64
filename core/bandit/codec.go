package bandit

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/breaking-byts/lifeos/core/features"
)

// MarshalState serializes the posterior for storage: mu as Dim little-endian
// float64s, the precision matrix as Dim×Dim little-endian float64s row-major.
func (m *Model) MarshalState() (theta, precision []byte) {
	dim := features.Dim

	theta = make([]byte, 0, dim*8)
	for i := 0; i < dim; i++ {
		theta = binary.LittleEndian.AppendUint64(theta, math.Float64bits(m.mu.AtVec(i)))
	}

	precision = make([]byte, 0, dim*dim*8)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			precision = binary.LittleEndian.AppendUint64(precision, math.Float64bits(m.precision.At(i, j)))
		}
	}

	return theta, precision
}

// UnmarshalState restores a posterior from stored blobs. A length mismatch
// returns an error; callers treat that as "no stored model" and start from
// a fresh prior.
func UnmarshalState(theta, precision []byte, priorPrecision, noisePrecision float64) (*Model, error) {
	dim := features.Dim

	if len(theta) != dim*8 {
		return nil, fmt.Errorf("theta blob is %d bytes, want %d", len(theta), dim*8)
	}
	if len(precision) != dim*dim*8 {
		return nil, fmt.Errorf("precision blob is %d bytes, want %d", len(precision), dim*dim*8)
	}

	mu := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		mu.SetVec(i, math.Float64frombits(binary.LittleEndian.Uint64(theta[i*8:])))
	}

	prec := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			prec.Set(i, j, math.Float64frombits(binary.LittleEndian.Uint64(precision[(i*dim+j)*8:])))
		}
	}

	return &Model{
		mu:             mu,
		precision:      prec,
		priorPrecision: priorPrecision,
		noisePrecision: noisePrecision,
	}, nil
}
