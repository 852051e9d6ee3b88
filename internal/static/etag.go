package static

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"
)

// emptyContentHash is base64(SHA1("")), the fingerprint of empty
// content.
const emptyContentHash = "2jmj7l5rSw0yVb/vlWAYkK/YBwk="

// ContentTag computes the weak entity tag for raw content:
// W/"<len-hex>-<base64(SHA1(content))[:27]>". Empty content yields the
// well-known empty-content constant in full.
func ContentTag(content []byte) string {
	if len(content) == 0 {
		return `W/"0-` + emptyContentHash + `"`
	}
	sum := sha1.Sum(content)
	hash := base64.StdEncoding.EncodeToString(sum[:])[:27]
	return fmt.Sprintf(`W/"%x-%s"`, len(content), hash)
}

// MetadataTag computes the weak entity tag from file metadata:
// W/"<size-hex>-<mtime-ms-hex>".
func MetadataTag(size int64, modTime time.Time) string {
	return fmt.Sprintf(`W/"%x-%x"`, size, modTime.UnixMilli())
}
