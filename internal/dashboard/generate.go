package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"droneops-mission/internal/events"
	"droneops-mission/internal/telemetry"
)

// EnvDatasourceUID names the Grafana GreptimeDB datasource.
const EnvDatasourceUID = "GREPTIMEDB_DATASOURCE_UID"

//go:embed templates/*.json.tmpl
var templates embed.FS

// Tables are the GreptimeDB tables the dashboards query.
type Tables struct {
	Readings   string
	Steps      string
	Aborts     string
	Faults     string
	Dispatches string
}

// Data is passed to every dashboard template.
type Data struct {
	MissionID string
	Field     string
	Tables    Tables
}

// DefaultTables matches the names the event writer and telemetry store use.
func DefaultTables() Tables {
	return Tables{
		Readings:   telemetry.DefaultTable,
		Steps:      events.StepTable,
		Aborts:     events.AbortTable,
		Faults:     events.FaultTable,
		Dispatches: events.DispatchTable,
	}
}

// Render parses dashboard templates and writes rendered dashboards to outDir.
func Render(outDir string, data Data) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	names, err := templates.ReadDir("templates")
	if err != nil {
		return err
	}
	for _, e := range names {
		tplName := e.Name()
		t, err := template.New(tplName).Funcs(funcMap).ParseFS(templates, "templates/"+tplName)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(tplName, ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, data); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
