package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"JobName", KeyJobName, "ingest", JobName("ingest")},
		{"StepName", KeyStepName, "load", StepName("load")},
		{"Status", KeyStatus, "COMPLETED", Status("COMPLETED")},
		{"ExitCode", KeyExitCode, "FAILED", ExitCode("FAILED")},
		{"Component", KeyComponent, "loadStep", Component("loadStep")},
		{"ComponentKind", KeyComponentKind, "simple-step", ComponentKind("simple-step")},
		{"Metric", KeyMetric, "batch.step.items.read", Metric("batch.step.items.read")},
		{"URL", KeyURL, "http://gw:9091", URL("http://gw:9091")},
		{"Subject", KeySubject, "batch.jobs.completed", Subject("batch.jobs.completed")},
		{"Path", KeyPath, "/tmp/journal.db", Path("/tmp/journal.db")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := JobExecutionID(42); v.Key != KeyJobExecutionID || v.Value.Int64() != 42 {
		t.Fatalf("JobExecutionID mismatch: %v", v)
	}
	if v := ChunkSeq(3); v.Key != KeyChunkSeq {
		t.Fatalf("ChunkSeq key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
	if v := Items(95); v.Key != KeyItems {
		t.Fatalf("Items key mismatch: %s", v.Key)
	}
	if v := Throughput(791.6); v.Key != KeyThroughput {
		t.Fatalf("Throughput key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
