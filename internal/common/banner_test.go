package common

import (
	"bytes"
	"strings"
	"testing"
)

func captureMessages(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, problems bytes.Buffer
	prevOut, prevProblems := messageOut, problemOut
	messageOut, problemOut = &out, &problems
	t.Cleanup(func() { messageOut, problemOut = prevOut, prevProblems })
	return &out, &problems
}

func TestProblemsStayOffStdout(t *testing.T) {
	out, problems := captureMessages(t)

	PrintWarning("Jira refresh failed")
	PrintError("Unknown view")
	PrintSuccess("Connected")

	if strings.Contains(out.String(), "Jira refresh failed") || strings.Contains(out.String(), "Unknown view") {
		t.Errorf("Warnings and errors must not reach stdout, got %q", out.String())
	}
	if !strings.Contains(problems.String(), "⚠ Jira refresh failed") || !strings.Contains(problems.String(), "✗ Unknown view") {
		t.Errorf("Expected warning and error on stderr, got %q", problems.String())
	}
	if !strings.Contains(out.String(), "✓ Connected") {
		t.Errorf("Expected success on stdout, got %q", out.String())
	}
}
