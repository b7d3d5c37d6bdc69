package storage

import (
	"strings"
	"testing"
)

// The job claim's safety properties live entirely in this statement; a
// refactor must not drop the attempts ceiling or the status guards.
func TestClaimJobSQLGuards(t *testing.T) {
	if !strings.Contains(claimJobSQL, "attempts < max_attempts") {
		t.Error("claim query lost the attempts ceiling")
	}
	if !strings.Contains(claimJobSQL, "status = 'pending' AND attempts") {
		t.Error("claim query lost the pending filter on the candidate select")
	}
	if !strings.Contains(claimJobSQL, ") AND status = 'pending'") {
		t.Error("claim query lost the compare-and-swap status condition")
	}
	if !strings.Contains(claimJobSQL, "FOR UPDATE SKIP LOCKED") {
		t.Error("claim query lost row locking")
	}
	if !strings.Contains(claimJobSQL, "attempts = attempts + 1") {
		t.Error("claim query no longer counts the attempt")
	}
}
