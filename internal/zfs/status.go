package zfs

import (
	"regexp"
	"strconv"
)

// scrubResultRe matches the scan line zpool status prints after a finished
// scrub, e.g. "scrub repaired 0B in 00:00:39 with 0 errors on ...".
var scrubResultRe = regexp.MustCompile(`scrub repaired (?P<repaired>\S+) in (?P<duration>\d{2}:\d{2}:\d{2}) with (?P<errors>\d+) errors`)

// ParseScrubStatus extracts the scrub result line from zpool status output.
func ParseScrubStatus(out string) (ScrubResult, bool) {
	m := scrubResultRe.FindStringSubmatch(out)
	if m == nil {
		return ScrubResult{}, false
	}
	errs, err := strconv.Atoi(m[3])
	if err != nil {
		return ScrubResult{}, false
	}
	return ScrubResult{Repaired: m[1], Duration: m[2], Errors: errs}, true
}
