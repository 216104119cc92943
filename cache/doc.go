// Package cache provides a fixed-capacity LRU hash table keyed by
// 128-bit content fingerprints.
//
// Unlike a map-backed LRU, StrongLRU stores its entries in a dense
// arena and hands every live entry a stable small integer index. The
// texture atlas uses that index to derive the entry's tile coordinates,
// so the index must not move for the lifetime of the entry and must be
// recycled exactly when the entry is evicted. Capacity is fixed at
// construction; the table never grows and never rehashes.
package cache
