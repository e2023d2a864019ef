package build

import "errors"

// ErrDiscoveryFailed reports an unreadable source directory. A pass treats
// it as an empty source set.
var ErrDiscoveryFailed = errors.New("deckbuilder: discovery failed")
