package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int, string], *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int, string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set(1, "one")
	c.Set(2, "two")

	_, ok := c.Get(1) // 2 is now least recent
	assert.True(t, ok)

	c.Set(3, "three")
	_, ok = c.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_SetOverwrites(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set(1, "one")
	c.Set(1, "uno")

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "uno", v)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set(1, "one")
	c.Set(2, "two")

	clk.t = clk.t.Add(30 * time.Second)
	c.Set(3, "three")

	clk.t = clk.t.Add(31 * time.Second)
	_, ok := c.Get(1)
	assert.False(t, ok, "entry older than ttl must expire on read")

	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
	v, ok := c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, "three", v)
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	c, clk := newTestCache(4, 0)
	c.Set(1, "one")
	clk.t = clk.t.Add(24 * time.Hour)

	_, ok := c.Get(1)
	assert.True(t, ok)
	assert.Zero(t, c.CleanExpired())
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	c.Set(1, "one")
	c.Set(2, "two")

	c.Delete(1)
	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Purge()
	assert.Zero(t, c.Size())
	c.Set(5, "five")
	assert.Equal(t, 1, c.Size())
}

func TestManager_CleanNow(t *testing.T) {
	a, clk := newTestCache(4, time.Second)
	b, _ := newTestCache(4, 0)
	a.Set(1, "one")
	b.Set(1, "one")
	clk.t = clk.t.Add(2 * time.Second)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Hour)
	m.Stop()
}
