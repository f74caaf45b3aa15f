//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package segment

// bloomFilterMetrics curries the three lookup outcomes a bloom filter can
// produce in front of FixedLenKeyIndex exact search, just
// once at initialization to prevent further allocs on the hot path.
type bloomFilterMetrics struct {
	trueNegative  TimeObserver // filter said "absent", key really was absent
	falsePositive TimeObserver // filter said "maybe present", key was absent
	truePositive  TimeObserver // filter said "maybe present", key was present
}

func newBloomFilterMetrics(metrics *Metrics) *bloomFilterMetrics {
	return &bloomFilterMetrics{
		trueNegative:  metrics.BloomFilterObserver("exact_search", "true_negative"),
		falsePositive: metrics.BloomFilterObserver("exact_search", "false_positive"),
		truePositive:  metrics.BloomFilterObserver("exact_search", "true_positive"),
	}
}
