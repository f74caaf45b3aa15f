//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2023 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package cyclemanager

import (
	"context"
	"sync"
)

// UnregisterFunc removes a previously registered CycleFunc from a
// CycleManager. It returns as soon as the function is removed from the
// registry and does not wait for a run already in progress to finish.
type UnregisterFunc func(ctx context.Context) error

// callbacks is the internal registry a cycleManager drives on every tick.
type callbacks interface {
	register(cycleFunc CycleFunc) UnregisterFunc
	execute(shouldBreak ShouldBreakFunc) bool
}

type multiCallbacks struct {
	sync.Mutex

	nextId uint32
	ids    []uint32
	funcs  map[uint32]CycleFunc
}

func newMultiCallbacks() callbacks {
	return &multiCallbacks{
		ids:   []uint32{},
		funcs: map[uint32]CycleFunc{},
	}
}

func (c *multiCallbacks) register(cycleFunc CycleFunc) UnregisterFunc {
	c.Lock()
	defer c.Unlock()

	id := c.nextId
	c.nextId++
	c.ids = append(c.ids, id)
	c.funcs[id] = cycleFunc

	return func(ctx context.Context) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Lock()
		defer c.Unlock()
		delete(c.funcs, id)
		return nil
	}
}

func (c *multiCallbacks) execute(shouldBreak ShouldBreakFunc) bool {
	executed := false

	c.Lock()
	ids := make([]uint32, len(c.ids))
	copy(ids, c.ids)
	c.Unlock()

	live := ids[:0]
	for _, id := range ids {
		if shouldBreak() {
			break
		}

		c.Lock()
		cycleFunc, ok := c.funcs[id]
		c.Unlock()
		if !ok {
			continue
		}
		live = append(live, id)

		if cycleFunc(shouldBreak) {
			executed = true
		}
	}

	c.Lock()
	c.ids = live
	c.Unlock()

	return executed
}
