package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderMissingEnv(t *testing.T) {
	t.Setenv(EnvDatasourceUID, "")
	if err := Render(t.TempDir(), Data{MissionID: "m", Tables: DefaultTables()}); err == nil {
		t.Fatalf("expected error for missing env vars")
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv(EnvDatasourceUID, "uid1")

	dir := t.TempDir()
	data := Data{MissionID: "courtyard", Field: "co2.CO2", Tables: DefaultTables()}
	if err := Render(dir, data); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "mission-dashboard.json"))
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("rendered dashboard is not JSON: %v", err)
	}
	s := string(b)
	for _, want := range []string{"uid1", "Mission courtyard", "FROM mission_readings", "FROM mission_dispatches", "'co2.CO2'"} {
		if !strings.Contains(s, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}
