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

import "time"

// CycleTicker drives a cycleManager's run loop. CycleExecuted is informed
// whether the last cycle actually did work, so a ticker can speed up while
// busy and idle down when there is nothing to do.
type CycleTicker interface {
	Start()
	Stop()
	C() <-chan time.Time
	CycleExecuted(done bool)
}

type fixedTicker struct {
	interval time.Duration
	ticker   *time.Ticker
}

// NewFixedTicker returns a CycleTicker that fires at a constant interval
// regardless of whether the previous cycle did any work.
func NewFixedTicker(interval time.Duration) CycleTicker {
	return &fixedTicker{interval: interval}
}

func (t *fixedTicker) Start() {
	t.ticker = time.NewTicker(t.interval)
}

func (t *fixedTicker) Stop() {
	if t.ticker != nil {
		t.ticker.Stop()
	}
}

func (t *fixedTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *fixedTicker) CycleExecuted(done bool) {}
