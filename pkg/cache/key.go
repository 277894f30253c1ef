package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// keySeparator joins the fields of an endpoint key before hashing.
const keySeparator = "|"

// EndpointKey derives the cache key of an HTTP endpoint call.
//
// The fields are joined with a separator and hashed with SHA-256, so
// identical logical requests always collide and any differing field yields a
// different 64-character key. Parameters are rendered sorted by name.
//
// Example input before hashing:
//
//	https://api.example.com|/rest/v1/meals|GET|campus_id=1&date="2026-03-02"|
func EndpointKey(baseURL, path, method string, params map[string]any, body []byte) string {
	parts := []string{
		baseURL,
		path,
		strings.ToUpper(method),
		describeParams(params),
		string(body),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}

// describeParams renders parameters deterministically (sorted keys, JSON values).
func describeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		value, err := json.Marshal(params[key])
		if err != nil {
			value = []byte(fmt.Sprintf("%v", params[key]))
		}
		pairs = append(pairs, key+"="+string(value))
	}
	return strings.Join(pairs, "&")
}

// MenuKey derives the cache key of a day's menu for a user and campus.
// Format: menu_<userID>_<campusID>_<yyyy-MM-dd>
func MenuKey(userID, campusID string, date time.Time) string {
	return "menu_" + userID + "_" + campusID + "_" + date.Format(time.DateOnly)
}

// fileNameForKey maps a cache key to its file name in the disk tier.
// Endpoint keys are already SHA-256 digests and are used as they are; any
// other key is hashed the same way first.
func fileNameForKey(key string) string {
	if isDigest(key) {
		return key + diskFileSuffix
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + diskFileSuffix
}

// isDigest reports whether key has the shape EndpointKey produces.
func isDigest(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
