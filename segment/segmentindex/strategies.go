//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package segmentindex

import "fmt"

// Kind identifies which on-disk codec backs a column group or index store.
type Kind uint16

const (
	KindFixedLen Kind = iota
	KindMultiPart
	KindZipInt
	KindFixedLenKey
	KindBoltKey
	KindNestLoudsTrie
	KindFastZip
	KindDictZip
	KindEmpty
	KindSeqReadAppendonly
)

func (k Kind) String() string {
	switch k {
	case KindFixedLen:
		return "fixedlen"
	case KindMultiPart:
		return "multipart"
	case KindZipInt:
		return "zipint"
	case KindFixedLenKey:
		return "fixedlenkey"
	case KindBoltKey:
		return "boltkey"
	case KindNestLoudsTrie:
		return "nestloudstrie"
	case KindFastZip:
		return "fastzip"
	case KindDictZip:
		return "dictzip"
	case KindEmpty:
		return "empty"
	case KindSeqReadAppendonly:
		return "seqreadappendonly"
	default:
		return "n/a"
	}
}

func IsExpectedKind(kind Kind, expectedKinds ...Kind) bool {
	if len(expectedKinds) == 0 {
		return true
	}
	for _, k := range expectedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func CheckExpectedKind(kind Kind, expectedKinds ...Kind) error {
	if IsExpectedKind(kind, expectedKinds...) {
		return nil
	}
	if len(expectedKinds) == 1 {
		return fmt.Errorf("store kind %v expected, got %v", expectedKinds[0], kind)
	}
	return fmt.Errorf("one of store kinds %v expected, got %v", expectedKinds, kind)
}
