package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/cratesls/pkg/observability"
)

// DefaultCooldown is how long a failed resolution is remembered before a
// new attempt is allowed. No external contract fixes this; it only has to
// be long enough that a broken crate name doesn't trigger a fetch on every
// keystroke.
const DefaultCooldown = 30 * time.Second

const (
	indexFetchTimeout = 15 * time.Second
	// Description fetches queue behind the API rate limiter, so the tail of
	// a large manifest can legitimately wait minutes for its turn.
	descFetchTimeout = 5 * time.Minute
)

// Cache is the session-scoped, single-flight store mapping crate names to
// resolved metadata. It is shared by every concurrent editor request.
//
// The first request for an unseen crate starts an index fetch and,
// once the version listing lands, a description fetch. Requests arriving
// while a fetch is in flight join it instead of issuing duplicate network
// calls. Fetches run on detached contexts: cancelling one waiting caller
// abandons that caller's wait, never the shared fetch.
//
// Entries never expire within a session; published versions are immutable.
// A failed resolution is retried only after a cooldown window.
type Cache struct {
	index    *IndexClient
	api      *APIClient
	cooldown time.Duration

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	updated func(crate string)
}

type entry struct {
	mu        sync.Mutex
	meta      *Metadata // versions only; nil for failed entries
	desc      string
	descState DescriptionState
	err       error
	failedAt  time.Time
}

// snapshot returns an immutable copy combining the version listing with the
// current description state.
func (e *entry) snapshot() *Metadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := *e.meta
	m.Description = e.desc
	m.DescriptionState = e.descState
	return &m
}

// NewCache creates a Cache resolving through index and api. A non-positive
// cooldown selects [DefaultCooldown].
func NewCache(index *IndexClient, api *APIClient, cooldown time.Duration) *Cache {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Cache{
		index:    index,
		api:      api,
		cooldown: cooldown,
		entries:  make(map[string]*entry),
	}
}

// SetOnUpdate registers a callback invoked (on a fetch goroutine) whenever
// an entry gains late-arriving data, currently only its description.
// Consumers use it to republish diagnostics or refresh hovers. Must be set
// before the first Resolve.
func (c *Cache) SetOnUpdate(fn func(crate string)) {
	c.mu.Lock()
	c.updated = fn
	c.mu.Unlock()
}

// Resolve returns the best-currently-known metadata for the named crate.
// It returns immediately for cached entries, joins an in-flight fetch when
// one exists, and starts one otherwise. The returned Metadata is usable as
// soon as the version listing is known; its DescriptionState reports
// whether the description has landed yet.
//
// ctx cancels only this caller's wait. The underlying fetch keeps running
// for other joiners and for the cache itself.
func (c *Cache) Resolve(ctx context.Context, name string) (*Metadata, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		if e.meta != nil {
			c.mu.Unlock()
			observability.Cache().OnHit(ctx, name)
			return e.snapshot(), nil
		}
		if time.Since(e.failedAt) < c.cooldown {
			err := e.err
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	observability.Cache().OnMiss(ctx, name)

	ch := c.group.DoChan(name, func() (any, error) {
		return c.fetch(name)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entry).snapshot(), nil
	}
}

// Known reports whether the crate resolves successfully. Used by
// navigation, which needs existence but no particular field.
func (c *Cache) Known(ctx context.Context, name string) bool {
	_, err := c.Resolve(ctx, name)
	return err == nil
}

// fetch runs detached from any caller so that editor-request cancellation
// cannot invalidate the entry being populated.
func (c *Cache) fetch(name string) (*entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), indexFetchTimeout)
	defer cancel()

	start := time.Now()
	meta, err := c.index.FetchVersions(ctx, name)
	observability.Cache().OnFetch(ctx, name, time.Since(start), err)

	c.mu.Lock()
	if err != nil {
		c.entries[name] = &entry{err: err, failedAt: time.Now()}
		c.mu.Unlock()
		// Forget so the attempt after the cooldown starts a fresh flight.
		c.group.Forget(name)
		return nil, err
	}

	e := &entry{meta: meta, descState: DescriptionPending}
	c.entries[name] = e
	c.mu.Unlock()

	go c.fetchDescription(name, e)
	return e, nil
}

func (c *Cache) fetchDescription(name string, e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), descFetchTimeout)
	defer cancel()

	start := time.Now()
	desc, err := c.api.FetchDescription(ctx, name)
	observability.Cache().OnDescription(ctx, name, time.Since(start), err)

	e.mu.Lock()
	if err != nil {
		e.descState = DescriptionUnavailable
	} else {
		e.desc = desc
		e.descState = DescriptionReady
	}
	e.mu.Unlock()

	c.mu.Lock()
	updated := c.updated
	c.mu.Unlock()
	if updated != nil {
		updated(name)
	}
}

// Len returns the number of cached entries, ready or failed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
