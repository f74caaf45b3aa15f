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

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TableOption configures a Table at construction time, mirroring
// bucket_options.go's BucketOption builder pattern: no viper/CLI flag
// binding, just validated With...(...) constructors.
type TableOption func(t *Table) error

// WithLogger injects a structured logger, propagated to every segment,
// Converter and Purger the table creates.
func WithLogger(log logrus.FieldLogger) TableOption {
	return func(t *Table) error {
		if log == nil {
			return errors.New("logger must not be nil")
		}
		t.logger = log
		return nil
	}
}

// WithMetrics wires a *Metrics instance; pass nil to disable metrics
// entirely (every Metrics method is nil-receiver-safe).
func WithMetrics(m *Metrics) TableOption {
	return func(t *Table) error {
		t.metrics = m
		return nil
	}
}

// WithCompressingWorkMemSize bounds how many bytes Phase C's multi-part
// split and the purger's colgroup rebuild keep resident per part.
func WithCompressingWorkMemSize(bytes int64) TableOption {
	return func(t *Table) error {
		if bytes <= 0 {
			return errors.New("compressingWorkMemSize must be positive")
		}
		t.compressingWorkMemSize = bytes
		return nil
	}
}

// WithDictZipLocalMatch stores a table-wide dict-zip local-match flag.
// Phase C does not read it: the dict-zip decision uses each column group's
// own Build.DictZipLocalMatch.
func WithDictZipLocalMatch(enable bool) TableOption {
	return func(t *Table) error {
		t.dictZipLocalMatch = enable
		return nil
	}
}

// WithDictZipSampleRatio stores a table-wide dict-zip sample ratio. Phase C
// does not read it: the dict-zip decision and the training sample use each
// column group's own Build.DictZipSampleRatio, where 0 defers to the
// "average row length > 100 bytes" rule and a negative value disables
// dict-zip outright.
func WithDictZipSampleRatio(ratio float64) TableOption {
	return func(t *Table) error {
		t.dictZipSampleRatio = ratio
		return nil
	}
}

// WithRankSelectClass overrides the default rsPlus512 superblock density
// used by the IsPurged.rs rank/select caches the Converter, Purger and Open
// build; it does not reach NestLoudsTrieBlobStore.
func WithRankSelectClass(class int) TableOption {
	return func(t *Table) error {
		if class < 0 || class > 2 {
			return errors.Errorf("invalid rank-select class %d", class)
		}
		t.rankSelectClass = class
		return nil
	}
}

// WithWithPurgeBits controls Open's id-space policy for readonly segments
// it reloads: true keeps logical ids stable (IsPurged.rs survives), false
// compacts the id space and drops IsPurged.rs. Has no effect on a freshly
// created table (NewTable never reloads anything), and no effect on the
// Converter/Purger's own internal tmp-directory reload, which always keeps
// IsPurged.rs regardless of this setting until the final rename.
func WithWithPurgeBits(keep bool) TableOption {
	return func(t *Table) error {
		t.withPurgeBits = keep
		return nil
	}
}

// WithTobeDelSweepInterval sets how often the background cyclemanager
// loop sweeps tobeDel segment directories left over from completed
// conversions and purges.
func WithTobeDelSweepInterval(interval time.Duration) TableOption {
	return func(t *Table) error {
		if interval <= 0 {
			return errors.New("tobeDel sweep interval must be positive")
		}
		t.tobeDelSweepInterval = interval
		return nil
	}
}

// WithUpdateListReserve sets how many slots the converter reserves in
// input.updateList before flipping bookUpdates, per spec.md §4.4 step 3.
func WithUpdateListReserve(slots int) TableOption {
	return func(t *Table) error {
		if slots <= 0 {
			return errors.New("update list reserve must be positive")
		}
		t.updateListReserve = slots
		return nil
	}
}
