// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package trashmonitor

import (
	"strings"
	"testing"
)

// The pair of statements must be idempotent: each one only touches rows
// on the opposite side of the trash flag, so a second run with the same
// votes matches nothing new.
func TestSweepStatementsGuardTrashFlag(t *testing.T) {
	if !strings.Contains(sinkSQL, "SET trash = true") || !strings.Contains(sinkSQL, "trash = false") {
		t.Error("sink statement must flip trash from false to true only")
	}
	if !strings.Contains(restoreSQL, "SET trash = false") || !strings.Contains(restoreSQL, "trash = true") {
		t.Error("restore statement must flip trash from true to false only")
	}
}

func TestSinkRespectsEntryAge(t *testing.T) {
	if !strings.Contains(sinkSQL, "create_ts") {
		t.Error("sink statement must only consider entries past the age threshold")
	}
	if strings.Contains(restoreSQL, "create_ts") {
		t.Error("restore has no age threshold")
	}
}
