// Package filter decides which source torrents are eligible for transfer
// using expr-lang expressions.
package filter

import (
	"strings"

	"github.com/s0up4200/seedshift/downloader"
)

const defaultCacheSize = 32

// Compiler compiles expressions and caches the resulting programs.
type Compiler struct {
	cache *lruCache
}

// NewCompiler creates a compiler with a bounded program cache.
func NewCompiler() *Compiler {
	return &Compiler{cache: newLRUCache(defaultCacheSize)}
}

// Compile returns the cached filter for expression or compiles it.
func (c *Compiler) Compile(expression string) (*ExprFilter, error) {
	key := strings.TrimSpace(expression)
	if f, ok := c.cache.Get(key); ok {
		return f, nil
	}

	f, err := CompileExprFilter(key)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, f)
	return f, nil
}

// Size returns the number of cached programs.
func (c *Compiler) Size() int {
	return c.cache.Size()
}

// Eligibility is the predicate the synchronizer applies to source torrents.
type Eligibility func(t downloader.Torrent) (bool, error)

// AcceptAll admits every torrent.
func AcceptAll(downloader.Torrent) (bool, error) { return true, nil }

// NewEligibility compiles expression into an Eligibility. An empty
// expression admits every torrent.
func (c *Compiler) NewEligibility(expression string) (Eligibility, error) {
	if strings.TrimSpace(expression) == "" {
		return AcceptAll, nil
	}
	f, err := c.Compile(expression)
	if err != nil {
		return nil, err
	}
	return f.Evaluate, nil
}
