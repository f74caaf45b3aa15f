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

import "github.com/pkg/errors"

// Sentinel error kinds compared with errors.Is, mirroring the
// lsmkv.NotFound / lsmkv.Deleted pattern this package is grounded on.
var (
	ErrNotFound         = errors.New("not found")
	ErrDeleted          = errors.New("deleted")
	ErrOutOfRange       = errors.New("id out of range")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrLogicError       = errors.New("logic error: store invariant violated")
	ErrIoError          = errors.New("io error")
	ErrBuildFallback    = errors.New("store build fell back to a compatible backend")
	ErrIteratorUnderrun = errors.New("iterator returned fewer rows than IsDel expected")
)
