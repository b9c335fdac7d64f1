package crawl

import (
	"fmt"
	"strings"
)

// DefaultTier is the storage namespace for raw ingested data.
const DefaultTier = "bronze"

// KeySet derives the deterministic storage keys for one tier/platform
// pair. The layout is a compatibility contract with downstream consumers
// and must stay bit-exact:
//
//	<tier>/crawler/metadata/user_profile/<run_ts>/<platform>/<target_id>.json
//	<tier>/crawler/metadata/user_post/<run_ts>/<platform>/<target_id>/<post_ts>.json
//	<tier>/crawler/media/<platform>/<target_id>/<post_ts>_<index><ext>
type KeySet struct {
	Tier     string
	Platform string
}

// NewKeySet applies the default tier when none is configured.
func NewKeySet(tier, platform string) KeySet {
	if tier == "" {
		tier = DefaultTier
	}
	return KeySet{Tier: tier, Platform: platform}
}

// ProfileKey returns the author profile key for one run.
func (k KeySet) ProfileKey(run RunTimestamp, target Target) string {
	return fmt.Sprintf("%s/crawler/metadata/user_profile/%s/%s/%s.json",
		k.Tier, run, k.Platform, target)
}

// PostKey returns the post metadata key for one run. postTS is the post's
// ISO-8601 timestamp; it is sanitized for path safety.
func (k KeySet) PostKey(run RunTimestamp, target Target, postTS string) string {
	return fmt.Sprintf("%s/crawler/metadata/user_post/%s/%s/%s/%s.json",
		k.Tier, run, k.Platform, target, SafeTimestamp(postTS))
}

// MediaKey returns the key for the index-th downloaded media item of a
// post. ext includes the leading dot.
func (k KeySet) MediaKey(target Target, postTS string, index int, ext string) string {
	return fmt.Sprintf("%s/crawler/media/%s/%s/%s_%d%s",
		k.Tier, k.Platform, target, SafeTimestamp(postTS), index, ext)
}

// SafeTimestamp replaces colons with hyphens: timestamps are ISO-8601 and
// colons are not safe path characters on all backends.
func SafeTimestamp(ts string) string {
	return strings.ReplaceAll(ts, ":", "-")
}
