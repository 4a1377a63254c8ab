package bucketing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucket_StableAndInRange(t *testing.T) {
	m := NewManager(16)

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("10.0.%d.%d", i/256, i%256)
		b := m.Bucket(key)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 16)
		assert.Equal(t, b, m.Bucket(key), "bucket for %s changed", key)
	}
}

func TestBucket_SpreadsKeys(t *testing.T) {
	m := NewManager(8)
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		seen[m.Bucket(fmt.Sprintf("client-%d", i))] = true
	}
	assert.Len(t, seen, 8)
}

func TestNewManager_NonPositiveBuckets(t *testing.T) {
	m := NewManager(0)
	assert.Equal(t, 1, m.Buckets())
	assert.Equal(t, 0, m.Bucket("anything"))
}
