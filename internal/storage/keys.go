package storage

import (
	"fmt"
	"time"
)

// KeyTimeLayout is the DateTime segment of generated blob keys.
const KeyTimeLayout = "20060102T150405Z"

// BlobKey builds "{prefix}{letter}-{DateTime}-{id}.{ext}", e.g.
// health-notifications-history/n-20260301T120000Z-<uuid>.html.
func BlobKey(prefix, letter string, now time.Time, id, ext string) string {
	return fmt.Sprintf("%s%s-%s-%s.%s", prefix, letter, now.UTC().Format(KeyTimeLayout), id, ext)
}
