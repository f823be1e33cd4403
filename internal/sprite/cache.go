package sprite

import (
	"math"
	"strings"
	"sync"
)

const (
	DefaultMaxEntries = 200
	DefaultBaseSize   = 64
)

type key struct {
	color      string
	feathering float64
	spikes     Spikes
}

// Cache memoizes sprites by (color, feathering, spikes). When it grows past
// MaxEntries it is cleared wholesale.
type Cache struct {
	MaxEntries int
	BaseSize   int

	mu        sync.Mutex
	entries   map[key]*Sprite
	hits      int
	misses    int
	evictions int
}

func NewCache(maxEntries, baseSize int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if baseSize <= 0 {
		baseSize = DefaultBaseSize
	}
	return &Cache{
		MaxEntries: maxEntries,
		BaseSize:   baseSize,
		entries:    make(map[key]*Sprite),
	}
}

func quantize(v float64) float64 {
	return math.Round(v*100) / 100
}

// Get returns the cached sprite, generating it on a miss.
func (c *Cache) Get(color string, feathering float64, spikes Spikes) *Sprite {
	k := key{
		color:      strings.ToLower(color),
		feathering: quantize(feathering),
		spikes:     Spikes{Gain: quantize(spikes.Gain), Angle: quantize(spikes.Angle)},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.entries[k]; ok {
		c.hits++
		return s
	}
	c.misses++
	if len(c.entries) >= c.MaxEntries {
		c.entries = make(map[key]*Sprite)
		c.evictions++
	}
	s := Generate(k.color, k.feathering, k.spikes, c.BaseSize)
	c.entries[k] = s
	return s
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit, miss and eviction counters.
func (c *Cache) Stats() (hits, misses, evictions int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions
}
