//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ V /| |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package idspace provides the thin logical<->physical row id translation
// a segment applies on top of its bitmap.RankSelect cache. A readonly
// segment with no purge bitmap is the identity mapping; once purged, a
// logical id maps to its physical offset through rank0, and a physical id
// maps back to its logical position through select0.
package idspace

import (
	"github.com/pkg/errors"

	"github.com/hangzhao/terark-db/bitmap"
)

type LogicalRowID = uint64
type PhysicalRowID = uint64

// Translator maps between a segment's logical and physical row id spaces.
// A nil *bitmap.RankSelect means the segment was never purged: the mapping
// is the identity.
type Translator struct {
	purged *bitmap.RankSelect
}

// NewTranslator wraps an optional purge-bitmap rank/select cache. Pass nil
// when the segment carries no IsPurged.rs (no purge has happened yet).
func NewTranslator(purged *bitmap.RankSelect) *Translator {
	return &Translator{purged: purged}
}

// PhysicalID translates a logical row id to its physical store offset.
func (t *Translator) PhysicalID(logical LogicalRowID) (PhysicalRowID, error) {
	if t.purged == nil {
		return logical, nil
	}
	return t.purged.Rank0(logical), nil
}

// LogicalID translates a physical store offset back to its logical row id.
func (t *Translator) LogicalID(physical PhysicalRowID) (LogicalRowID, error) {
	if t.purged == nil {
		return physical, nil
	}
	id, err := t.purged.Select0(physical)
	if err != nil {
		return 0, errors.Wrapf(err, "logical id for physical %d", physical)
	}
	return id, nil
}

// IsPurged reports whether logical has been physically removed (only ever
// true when a purge bitmap is present and the logical id's bit is set).
func IsPurged(purgedBitmap *bitmap.Bitmap, logical LogicalRowID) bool {
	if purgedBitmap == nil {
		return false
	}
	if logical >= purgedBitmap.Len() {
		return false
	}
	return purgedBitmap.Get(logical)
}
