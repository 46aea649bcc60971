package schemavalidation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"monitord/internal/window"
)

func TestActivityPeriodFixture(t *testing.T) {
	root := repoRoot(t)
	validateInstance(t,
		filepath.Join(root, "docs", "schema", "activity-period-v1.schema.json"),
		filepath.Join(root, "docs", "spec", "fixtures", "activity-period-v1.json"),
	)
}

// TestMarshaledPeriodMatchesSchema guards against the Go types and the
// published schema drifting apart.
func TestMarshaledPeriodMatchesSchema(t *testing.T) {
	start := time.Date(2025, 6, 1, 14, 3, 0, 0, time.UTC)
	p := window.ActivityPeriod{
		ID:             "p-1",
		SessionID:      "sess-1",
		UserID:         "u-1",
		PeriodStart:    start,
		PeriodEnd:      start.Add(time.Minute),
		Mode:           "command_hours",
		ActivityScore:  64,
		IsValid:        true,
		Classification: "typing",
	}
	p.Breakdown.Class.Category = "typing"
	p.Breakdown.Score.FinalScore = 64
	p.Breakdown.Score.Formula = "weighted components - penalties + bonus"
	p.Spike.Pattern = "typing"
	p.Spike.SpikeScore = 4
	p.Spike.Confidence = 2

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal period: %v", err)
	}

	schema := compileSchema(t, filepath.Join(repoRoot(t), "docs", "schema", "activity-period-v1.schema.json"))

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if err := schema.Validate(instance); err != nil {
		t.Fatalf("marshaled period does not match schema: %v", err)
	}
}

func TestSchemaRejectsOutOfRangeScore(t *testing.T) {
	root := repoRoot(t)
	schema := compileSchema(t, filepath.Join(root, "docs", "schema", "activity-period-v1.schema.json"))

	data, err := os.ReadFile(filepath.Join(root, "docs", "spec", "fixtures", "activity-period-v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	instance["activityScore"] = 150
	if err := schema.Validate(any(instance)); err == nil {
		t.Fatal("expected score above 100 to fail validation")
	}

	instance["activityScore"] = 50
	instance["mode"] = "weekend_hours"
	if err := schema.Validate(any(instance)); err == nil {
		t.Fatal("expected unknown mode to fail validation")
	}
}

func validateInstance(t *testing.T, schemaPath, instancePath string) {
	t.Helper()

	instanceData, err := os.ReadFile(instancePath)
	if err != nil {
		t.Fatalf("read instance: %v", err)
	}

	var instance any
	if err := json.Unmarshal(instanceData, &instance); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}

	schema := compileSchema(t, schemaPath)
	if err := schema.Validate(instance); err != nil {
		t.Fatalf("schema validation failed for %s: %v", filepath.Base(instancePath), err)
	}
}

func compileSchema(t *testing.T, schemaPath string) *jsonschema.Schema {
	t.Helper()

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, bytes.NewReader(schemaData)); err != nil {
		t.Fatalf("add schema resource: %v", err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return schema
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to resolve caller path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
