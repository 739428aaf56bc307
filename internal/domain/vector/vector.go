// Package vector holds the multi-representation embedding of a single text.
package vector

import "fmt"

// Sparse is a sparse vector in coordinate form. Indices are unique.
type Sparse struct {
	Indices []uint32  `msgpack:"i" json:"indices"`
	Values  []float32 `msgpack:"v" json:"values"`
}

// Len returns the number of non-zero entries.
func (s Sparse) Len() int { return len(s.Indices) }

// Validate checks that indices and values are aligned and indices are unique.
func (s Sparse) Validate() error {
	if len(s.Indices) != len(s.Values) {
		return fmt.Errorf("sparse vector: %d indices vs %d values", len(s.Indices), len(s.Values))
	}
	seen := make(map[uint32]struct{}, len(s.Indices))
	for _, idx := range s.Indices {
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("sparse vector: duplicate index %d", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// Dot returns the inner product of two sparse vectors.
func (s Sparse) Dot(o Sparse) float64 {
	if s.Len() == 0 || o.Len() == 0 {
		return 0
	}
	weights := make(map[uint32]float32, o.Len())
	for i, idx := range o.Indices {
		weights[idx] = o.Values[i]
	}
	var sum float64
	for i, idx := range s.Indices {
		if w, ok := weights[idx]; ok {
			sum += float64(s.Values[i]) * float64(w)
		}
	}
	return sum
}

// Representation is the dense, sparse and multivector embedding of one text.
type Representation struct {
	Dense  []float32   `msgpack:"d" json:"dense"`
	Sparse Sparse      `msgpack:"s" json:"sparse"`
	Multi  [][]float32 `msgpack:"m" json:"multivector"`
}

// Validate checks that every channel is populated and internally consistent.
func (r Representation) Validate() error {
	if len(r.Dense) == 0 {
		return fmt.Errorf("dense vector is empty")
	}
	if err := r.Sparse.Validate(); err != nil {
		return err
	}
	if len(r.Multi) == 0 {
		return fmt.Errorf("multivector is empty")
	}
	dim := len(r.Multi[0])
	for i, tok := range r.Multi {
		if len(tok) == 0 || len(tok) != dim {
			return fmt.Errorf("multivector token %d has dimension %d, want %d", i, len(tok), dim)
		}
	}
	return nil
}
