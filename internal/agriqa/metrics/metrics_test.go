package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetQAMetrics_Singleton(t *testing.T) {
	assert.Same(t, GetQAMetrics(), GetQAMetrics())
	fresh := Reset()
	assert.Same(t, fresh, GetQAMetrics())
}

func TestRecordQuery(t *testing.T) {
	m := Reset()

	m.RecordQuery(2*time.Second, nil)
	m.RecordQuery(time.Second, errors.New("boom"))

	stats := m.Stats()["queries"].(map[string]interface{})
	assert.Equal(t, uint64(2), stats["total"])
	assert.Equal(t, uint64(1), stats["errors"])
	assert.InDelta(t, 2.0, stats["avg_duration_seconds"], 1e-9)
}

func TestRecordRetrievalAndFetch(t *testing.T) {
	m := Reset()

	m.RecordRetrieval(time.Millisecond, true, nil)
	m.RecordRetrieval(time.Millisecond, false, errors.New("x"))
	m.RecordFetch("remote")
	m.RecordFetch("synthetic")
	m.RecordFetch("synthetic")
	m.RecordFetch("cache")
	m.RecordFetch("bogus")

	s := m.Stats()
	r := s["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(2), r["total"])
	assert.Equal(t, uint64(1), r["errors"])
	assert.Equal(t, uint64(1), r["summarized"])

	d := s["datasets"].(map[string]interface{})
	assert.Equal(t, uint64(1), d["remote_fetches"])
	assert.Equal(t, uint64(2), d["synthetic_fallbacks"])
	assert.Equal(t, uint64(1), d["snapshot_hits"])
}

func TestDecomposeCacheHitRate(t *testing.T) {
	m := Reset()
	m.RecordDecomposeCache(true)
	m.RecordDecomposeCache(false)
	m.RecordDecomposeCache(true)
	m.RecordDecomposeCache(true)

	c := m.Stats()["decompose_cache"].(map[string]interface{})
	assert.InDelta(t, 0.75, c["hit_rate"], 1e-9)
}

func TestConcurrentRecording(t *testing.T) {
	m := Reset()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordLLMCall(time.Millisecond, 10, nil)
			m.RecordIndexing(2, nil)
		}()
	}
	wg.Wait()

	s := m.Stats()
	assert.Equal(t, uint64(50), s["llm"].(map[string]interface{})["calls"])
	assert.Equal(t, uint64(500), s["llm"].(map[string]interface{})["tokens"])
	assert.Equal(t, uint64(100), s["index"].(map[string]interface{})["documents"])
}

func TestExport(t *testing.T) {
	m := Reset()
	m.RecordQuery(time.Second, nil)
	m.RecordParseFailure()

	out := m.Export("agriqa", "pipeline")
	assert.Contains(t, out, "# TYPE agriqa_pipeline_queries_total counter")
	assert.Contains(t, out, "agriqa_pipeline_queries_total 1\n")
	assert.Contains(t, out, "agriqa_pipeline_llm_parse_failures_total 1\n")
	assert.Contains(t, out, "agriqa_pipeline_uptime_seconds")
}
