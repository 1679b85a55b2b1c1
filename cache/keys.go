package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key convention is {domain}:{subresource}:{id} so glob invalidation can
// target one subresource at a time.

func SyncStatusKey(connectionID uint) string {
	return fmt.Sprintf("tms:sync:status:%d", connectionID)
}

func FilteredOrdersKey(filterHash string) string {
	return "tms:orders:filtered:" + filterHash
}

func CarrierKey(externalID string) string {
	return "tms:carriers:" + externalID
}

func CountersKey(connectionID uint) string {
	return fmt.Sprintf("tms:counters:%d", connectionID)
}

const (
	SyncStatusPattern = "tms:sync:status:*"
	OrdersPattern     = "tms:orders:*"
	CarriersPattern   = "tms:carriers:*"
)

// HashFilters produces a stable hash for a filter set, so equivalent queries
// share one cache entry regardless of map iteration order.
func HashFilters(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, _ := json.Marshal(filters[k])
		b.WriteString(k)
		b.WriteByte('=')
		b.Write(v)
		b.WriteByte(';')
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
