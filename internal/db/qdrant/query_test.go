package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

func testLayout() Layout {
	return Layout{Dense: "dense", Sparse: "sparse", Multi: "colbert", TextField: "text", MetadataRoot: "metadata"}
}

func testVectors() vector.Representation {
	return vector.Representation{
		Dense:  []float32{0.1, 0.2, 0.3},
		Sparse: vector.Sparse{Indices: []uint32{4, 9}, Values: []float32{0.5, 1.5}},
		Multi:  [][]float32{{1, 0}, {0, 1}},
	}
}

func TestBuildFusedQuery_Shape(t *testing.T) {
	expr, err := filter.FromMap(map[string]string{"ticker": "AAPL", "form_type": "10-K"})
	require.NoError(t, err)

	req, err := buildFusedQuery("financial", testLayout(), FusedQuery{
		Vectors:       testVectors(),
		Filters:       expr,
		PrefetchLimit: 20,
		FusionLimit:   15,
		Limit:         3,
	})
	require.NoError(t, err)

	assert.Equal(t, "financial", req.GetCollectionName())
	assert.Equal(t, "colbert", req.GetUsing())
	assert.Equal(t, uint64(3), req.GetLimit())
	assert.NotNil(t, req.GetQuery().GetNearest().GetMultiDense())

	require.Len(t, req.GetPrefetch(), 1)
	fused := req.GetPrefetch()[0]
	assert.Equal(t, qdrant.Fusion_RRF, fused.GetQuery().GetFusion())
	assert.Equal(t, uint64(15), fused.GetLimit())

	channels := fused.GetPrefetch()
	require.Len(t, channels, 2)
	assert.Equal(t, "dense", channels[0].GetUsing())
	assert.Equal(t, "sparse", channels[1].GetUsing())
	for _, ch := range channels {
		assert.Equal(t, uint64(20), ch.GetLimit())
		require.Len(t, ch.GetFilter().GetMust(), 2)
	}

	keys := []string{
		channels[0].GetFilter().GetMust()[0].GetField().GetKey(),
		channels[0].GetFilter().GetMust()[1].GetField().GetKey(),
	}
	assert.Equal(t, []string{"metadata.form_type", "metadata.ticker"}, keys)
	assert.Equal(t, "10-K", channels[0].GetFilter().GetMust()[0].GetField().GetMatch().GetKeyword())
}

func TestBuildFusedQuery_EmptySparseSkipsChannel(t *testing.T) {
	v := testVectors()
	v.Sparse = vector.Sparse{}

	req, err := buildFusedQuery("financial", testLayout(), FusedQuery{
		Vectors: v, PrefetchLimit: 20, FusionLimit: 15, Limit: 3,
	})
	require.NoError(t, err)
	assert.Len(t, req.GetPrefetch()[0].GetPrefetch(), 1)
	assert.Nil(t, req.GetFilter(), "no filter for an empty expression")
}

func TestBuildFusedQuery_Validation(t *testing.T) {
	_, err := buildFusedQuery("c", testLayout(), FusedQuery{PrefetchLimit: 20, FusionLimit: 15, Limit: 3})
	assert.Error(t, err)

	_, err = buildFusedQuery("c", testLayout(), FusedQuery{Vectors: testVectors(), PrefetchLimit: 20, FusionLimit: 15})
	assert.Error(t, err)
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "6f1c", pointID(qdrant.NewIDUUID("6f1c")))
	assert.Equal(t, "42", pointID(qdrant.NewIDNum(42)))
	assert.Equal(t, "", pointID(nil))
}

func TestStructToMap_Nested(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		"text": "revenue grew",
		"metadata": map[string]any{
			"ticker": "AAPL",
			"year":   2024,
			"tags":   []any{"10-K", true},
		},
	})

	got := structToMap(payload)
	assert.Equal(t, "revenue grew", got["text"])

	meta, ok := got["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AAPL", meta["ticker"])
	assert.Equal(t, int64(2024), meta["year"])
	assert.Equal(t, []any{"10-K", true}, meta["tags"])
}
