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

import "github.com/hangzhao/terark-db/idspace"

// KeyRedux is a sorted-order-ready reduction of an index entry: the key and
// the physical row id one past the row it indexes. Every key resolves to
// exactly one physical row, so MarshalSortedKeys recovers that row's id as
// ValueEnd-1 without needing any other entry's data.
type KeyRedux struct {
	Key      []byte
	ValueEnd idspace.PhysicalRowID
}
