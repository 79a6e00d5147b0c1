package idgen

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflake_RejectsInvalidWorkerID(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.ErrorIs(t, err, ErrInvalidWorkerID)

	_, err = NewSnowflake(maxWorkerID + 1)
	assert.ErrorIs(t, err, ErrInvalidWorkerID)
}

func TestSnowflake_GenerateIsUniqueAndIncreasing(t *testing.T) {
	sf, err := NewSnowflake(7)
	require.NoError(t, err)

	var last int64
	for i := 0; i < 10000; i++ {
		id := sf.Generate()
		require.Greater(t, id, last)
		assert.EqualValues(t, 7, (id>>workerIDShift)&maxWorkerID)
		last = id
	}
}

func TestGenerateTransactionID(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{32}$`)

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := GenerateTransactionID()
				assert.Regexp(t, pattern, id)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 4000)
}

func TestNextEventID(t *testing.T) {
	a := NextEventID()
	b := NextEventID()
	assert.Greater(t, b, a)
}
