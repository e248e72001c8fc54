// Package releases resolves which upstream versions are buildable.
//
// Tags come from the GitHub releases API (newest first). Release
// candidates are filtered out, then either grouped by major.minor with
// only the newest patch kept (bitcoin) or taken in upstream order
// (electrs). A catalog fetch that fails yields an empty list, never an
// error: "versions unavailable" is a state the UI handles, not a fault.
package releases

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Upstream release listing endpoints.
const (
	BitcoinAPI = "https://api.github.com/repos/bitcoin/bitcoin/releases"
	ElectrsAPI = "https://api.github.com/repos/romanz/electrs/releases"
)

// scanLimit caps how many non-RC tags Resolve considers before
// grouping. Upstream returns newest first, so 20 tags comfortably
// cover the major.minor groups anyone would build.
const scanLimit = 20

// Key is the ordered decomposition of a release tag. Missing
// components parse as zero, so "v29" and "v29.0.0" compare equal.
type Key struct {
	Major, Minor, Patch int
}

// Less orders keys ascending; callers invert it for newest-first.
func (k Key) Less(o Key) bool {
	if k.Major != o.Major {
		return k.Major < o.Major
	}
	if k.Minor != o.Minor {
		return k.Minor < o.Minor
	}
	return k.Patch < o.Patch
}

// ParseKey decomposes a tag like "v29.1" or "0.21.0" into its ordered
// key. The parse is tolerant: a leading "v" is stripped, non-numeric
// or missing components default to zero.
func ParseKey(tag string) Key {
	tag = strings.TrimPrefix(tag, "v")
	parts := strings.SplitN(tag, ".", 3)
	var nums [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		// Trim anything after the numeric run ("0rc1" → 0 is wrong for
		// RC tags, but those are filtered before parsing).
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			break
		}
		nums[i] = n
	}
	return Key{Major: nums[0], Minor: nums[1], Patch: nums[2]}
}

// Major returns the major component of a tag.
func Major(tag string) int {
	return ParseKey(tag).Major
}

// IsRC reports whether a tag names a release candidate.
// Case-insensitive substring match, same as upstream tag conventions
// ("v30.0rc1", "v0.9.0-RC2").
func IsRC(tag string) bool {
	return strings.Contains(strings.ToLower(tag), "rc")
}

// Resolve filters RCs out of tags (newest first, as upstream returns
// them), groups by major.minor in first-seen order, keeps the highest
// patch per group, and returns at most maxGroups representatives,
// newest group first. Ties on equal keys keep the first-seen tag.
func Resolve(tags []string, maxGroups int) []string {
	type group struct {
		key  Key // major.minor only
		best string
	}
	var groups []group
	index := make(map[Key]int)

	scanned := 0
	for _, tag := range tags {
		if IsRC(tag) {
			continue
		}
		scanned++
		k := ParseKey(tag)
		gk := Key{Major: k.Major, Minor: k.Minor}
		if i, ok := index[gk]; ok {
			if ParseKey(groups[i].best).Less(k) {
				groups[i].best = tag
			}
		} else {
			index[gk] = len(groups)
			groups = append(groups, group{key: gk, best: tag})
		}
		if scanned == scanLimit {
			break
		}
	}

	// Order groups newest first. Insertion sort keeps first-seen order
	// stable for equal keys.
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j-1].key.Less(groups[j].key); j-- {
			groups[j-1], groups[j] = groups[j], groups[j-1]
		}
	}

	var out []string
	for _, g := range groups {
		out = append(out, g.best)
		if len(out) == maxGroups {
			break
		}
	}
	return out
}

// Latest returns the first n non-RC tags in upstream order. Used for
// electrs, whose release cadence doesn't need major.minor grouping.
func Latest(tags []string, n int) []string {
	var out []string
	for _, tag := range tags {
		if IsRC(tag) {
			continue
		}
		out = append(out, tag)
		if len(out) == n {
			break
		}
	}
	return out
}

// Client fetches release listings over HTTP.
type Client struct {
	HTTP *http.Client
}

// NewClient returns a client with the short timeout the catalog
// contract requires: a slow GitHub should degrade to "no versions",
// not hang the UI.
func NewClient() *Client {
	return &Client{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Tags fetches the release listing at url and returns the tag names in
// upstream (newest-first) order.
func (c *Client) Tags(url string) ([]string, error) {
	resp, err := c.HTTP.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch releases: %s returned %s", url, resp.Status)
	}
	var records []struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode releases: %w", err)
	}
	tags := make([]string, 0, len(records))
	for _, r := range records {
		tags = append(tags, r.TagName)
	}
	return tags, nil
}

// BitcoinVersions returns up to five buildable Bitcoin Core tags,
// one per major.minor group, newest first. Fail-soft: any fetch or
// decode failure yields an empty list.
func (c *Client) BitcoinVersions() []string {
	tags, err := c.Tags(BitcoinAPI)
	if err != nil {
		return nil
	}
	return Resolve(tags, 5)
}

// ElectrsVersions returns up to three buildable electrs tags in
// upstream order. Fail-soft like BitcoinVersions.
func (c *Client) ElectrsVersions() []string {
	tags, err := c.Tags(ElectrsAPI)
	if err != nil {
		return nil
	}
	return Latest(tags, 3)
}
