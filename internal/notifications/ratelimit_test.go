package notifications

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateCacheAllowsWithinLimit(t *testing.T) {
	c := newRateCache(3, time.Hour, 100)

	for i := 0; i < 3; i++ {
		assert.True(t, c.Allow("a@example.com", "document_sealed"))
	}
	assert.False(t, c.Allow("a@example.com", "document_sealed"))
}

func TestRateCacheKeysAreIndependent(t *testing.T) {
	c := newRateCache(1, time.Hour, 100)

	assert.True(t, c.Allow("a@example.com", "document_sealed"))
	assert.False(t, c.Allow("a@example.com", "document_sealed"))
	assert.True(t, c.Allow("b@example.com", "document_sealed"))
	assert.True(t, c.Allow("a@example.com", "other_category"))
}

func TestRateCacheWindowResets(t *testing.T) {
	now := time.Now()
	c := newRateCache(1, time.Hour, 100)
	c.now = func() time.Time { return now }

	assert.True(t, c.Allow("a@example.com", "document_sealed"))
	assert.False(t, c.Allow("a@example.com", "document_sealed"))

	now = now.Add(time.Hour + time.Second)
	assert.True(t, c.Allow("a@example.com", "document_sealed"))
}

func TestRateCacheBoundedByMaxKeys(t *testing.T) {
	now := time.Now()
	c := newRateCache(1, time.Hour, 5)
	c.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.True(t, c.Allow(fmt.Sprintf("user%d@example.com", i), "document_sealed"))
	}
	// Cache is full of live entries; new keys are refused rather than
	// growing the map.
	assert.False(t, c.Allow("overflow@example.com", "document_sealed"))

	// Expired entries are collected and the slot is reusable.
	now = now.Add(2 * time.Hour)
	assert.True(t, c.Allow("overflow@example.com", "document_sealed"))
}
