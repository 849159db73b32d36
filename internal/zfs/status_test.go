package zfs

import "testing"

const statusAfterScrub = `  pool: benchpool-cv0p3q
 state: ONLINE
  scan: scrub repaired 0B in 00:00:39 with 0 errors on Sun Aug 31 10:14:22 2025
config:

	NAME            STATE     READ WRITE CKSUM
	benchpool-cv0p3q  ONLINE       0     0     0
	  nbd5          ONLINE       0     0     0

errors: No known data errors
`

const statusScrubInProgress = `  pool: benchpool-cv0p3q
 state: ONLINE
  scan: scrub in progress since Sun Aug 31 10:13:43 2025
`

func TestParseScrubStatus(t *testing.T) {
	res, ok := ParseScrubStatus(statusAfterScrub)
	if !ok {
		t.Fatalf("expected a parse")
	}
	if res.Repaired != "0B" {
		t.Fatalf("repaired=%q want 0B", res.Repaired)
	}
	if res.Duration != "00:00:39" {
		t.Fatalf("duration=%q want 00:00:39", res.Duration)
	}
	if res.Errors != 0 {
		t.Fatalf("errors=%d want 0", res.Errors)
	}
}

func TestParseScrubStatusWithErrors(t *testing.T) {
	out := `  scan: scrub repaired 128K in 01:02:03 with 7 errors on Sun Aug 31 10:14:22 2025`
	res, ok := ParseScrubStatus(out)
	if !ok {
		t.Fatalf("expected a parse")
	}
	if res.Repaired != "128K" || res.Duration != "01:02:03" || res.Errors != 7 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestParseScrubStatusInProgress(t *testing.T) {
	if _, ok := ParseScrubStatus(statusScrubInProgress); ok {
		t.Fatalf("in-progress status must not parse as a result")
	}
}
