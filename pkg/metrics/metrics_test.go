package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncr_TagOrderIsOneSeries(t *testing.T) {
	r := NewRegistry()

	r.Incr("outcome", Tags{"a": "1", "b": "2"})
	r.Incr("outcome", Tags{"b": "2", "a": "1"})

	assert.Equal(t, int64(2), r.Snapshot()["outcome{a=1,b=2}"])
}

func TestCount_SumsAcrossTagCombinations(t *testing.T) {
	r := NewRegistry()

	r.Incr("outcome", Tags{"status": "complete"})
	r.Incr("outcome", Tags{"status": "error"})
	r.Incr("outcome", nil)
	r.Incr("outcomes_other", nil)

	assert.Equal(t, int64(3), r.Count("outcome"))
	assert.Equal(t, int64(1), r.Count("outcomes_other"))
	assert.Zero(t, r.Count("missing"))
}

func TestIncr_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Incr("hits", Tags{"worker": "w"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), r.Count("hits"))
}
