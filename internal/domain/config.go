package domain

// VectorConfig describes the named vector channels of the chunk index.
type VectorConfig struct {
	DenseChannel      string
	SparseChannel     string
	MultiChannel      string
	DenseDimensions   int
	MultiDimensions   int
	DenseModel        string
	SparseModel       string
	MultiModel        string
	DenseDistance     string
	MultiVectorMetric string
}

// DefaultVectorConfig returns the channel layout of the financial corpus index.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		DenseChannel:      "dense",
		SparseChannel:     "sparse",
		MultiChannel:      "colbert",
		DenseDimensions:   384,
		MultiDimensions:   128,
		DenseModel:        "sentence-transformers/all-MiniLM-L6-v2",
		SparseModel:       "Qdrant/bm25",
		MultiModel:        "colbert-ir/colbertv2.0",
		DenseDistance:     "cosine",
		MultiVectorMetric: "max_sim",
	}
}
