package applog

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfofIncludesTagAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("myr", &buf)
	l.Infof("connected to %s", "127.0.0.1")

	out := buf.String()
	if !strings.Contains(out, "[myr] connected to 127.0.0.1") {
		t.Fatalf("output = %q, want it to contain the tagged message", out)
	}
}

func TestDebugfAndErrorfUseDistinctTags(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("myr", &buf)
	l.Debugf("dsn=%s", "root@tcp")
	l.Errorf("query failed: %v", "timeout")

	out := buf.String()
	if !strings.Contains(out, "[myr debug] dsn=root@tcp") {
		t.Fatalf("output = %q, want a debug line", out)
	}
	if !strings.Contains(out, "[myr error] query failed: timeout") {
		t.Fatalf("output = %q, want an error line", out)
	}
}

func TestWithScopesToASubTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("myr", &buf).With("tunnel")
	l.Infof("dialing")

	if !strings.Contains(buf.String(), "[myr tunnel] dialing") {
		t.Fatalf("output = %q, want the sub-tagged message", buf.String())
	}
}
