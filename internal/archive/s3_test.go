package archive

import (
	"testing"
	"time"
)

func TestS3ObjectKey_TimestampedPerExport(t *testing.T) {
	d := &S3Destination{keyPrefix: "warren/journal/"}

	at := time.Date(2026, 8, 26, 9, 30, 15, 0, time.UTC)
	if got, want := d.objectKey(at), "warren/journal/20260826T093015Z.jsonl"; got != want {
		t.Errorf("objectKey() = %q, want %q", got, want)
	}

	// Successive exports land on distinct objects.
	later := d.objectKey(at.Add(time.Minute))
	if later == d.objectKey(at) {
		t.Errorf("objectKey() reused %q for a later export", later)
	}
}
