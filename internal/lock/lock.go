// Package lock serializes work per key, in process and across processes.
package lock

import (
	"context"
)

// Locker acquires exclusive ownership of a key. The returned release func
// must be called exactly once; it never fails the caller.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Chain acquires every locker in order and releases in reverse order.
type Chain []Locker

// Lock implements Locker.
func (c Chain) Lock(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		release, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
