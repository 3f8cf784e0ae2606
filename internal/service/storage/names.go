package storage

import (
	"fmt"
	"strings"
	"time"
)

const snapshotTimeLayout = "2006-01-02_15-04-05.000"

// ParseSnapshotName recovers the timestamp, source and labels from a name
// produced by the snapshot buffer. A "none" label list yields no labels.
func ParseSnapshotName(name string) (time.Time, string, []string, error) {
	base := strings.TrimSuffix(name, ".jpg")
	if base == name {
		return time.Time{}, "", nil, fmt.Errorf("not a snapshot: %s", name)
	}

	parts := strings.Split(base, "_")
	if len(parts) != 5 {
		return time.Time{}, "", nil, fmt.Errorf("unexpected snapshot name: %s", name)
	}

	ts, err := time.Parse(snapshotTimeLayout, parts[0]+"_"+parts[1])
	if err != nil {
		return time.Time{}, "", nil, fmt.Errorf("invalid snapshot timestamp in %s: %w", name, err)
	}

	var labels []string
	if parts[3] != "none" {
		labels = strings.Split(parts[3], "-")
	}
	return ts, parts[2], labels, nil
}
