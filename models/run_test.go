package models

import (
	"encoding/json"
	"testing"
)

func TestIngestSummaryWireFormat(t *testing.T) {
	s := IngestSummary{
		Total:      12,
		Duplicates: 2,
		PerSource:  map[string]int{"gallito": 7, "infocasas": 5},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["total"] != 12 || raw["duplicates"] != 2 {
		t.Fatalf("wrong counts: %v", raw)
	}
	if raw["source_gallito"] != 7 || raw["source_infocasas"] != 5 {
		t.Fatalf("per-source keys not flattened: %v", raw)
	}

	var back IngestSummary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if back.Total != 12 || back.Duplicates != 2 {
		t.Fatalf("counts lost: %+v", back)
	}
	if back.PerSource["gallito"] != 7 || back.PerSource["infocasas"] != 5 {
		t.Fatalf("per-source lost: %+v", back)
	}
}

func TestIngestSummaryNoSources(t *testing.T) {
	data, err := json.Marshal(IngestSummary{Total: 0, Duplicates: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back IngestSummary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.PerSource != nil {
		t.Fatalf("expected nil per-source map, got %v", back.PerSource)
	}
}
