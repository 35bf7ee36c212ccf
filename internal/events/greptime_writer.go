package events

import (
	"context"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// Ingester is the subset of the GreptimeDB ingester client used here.
type Ingester interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// Table names used by GreptimeWriter.
const (
	StepTable     = "mission_steps"
	AbortTable    = "mission_aborts"
	FaultTable    = "mission_faults"
	DispatchTable = "mission_dispatches"
)

// GreptimeWriter stores events in GreptimeDB, one table per category.
type GreptimeWriter struct {
	client  Ingester
	timeout time.Duration
}

// NewGreptimeWriter creates a writer using client. A zero timeout means 5s.
func NewGreptimeWriter(client Ingester, timeout time.Duration) *GreptimeWriter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GreptimeWriter{client: client, timeout: timeout}
}

func (w *GreptimeWriter) write(tbl *table.Table) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	_, err := w.client.Write(ctx, tbl)
	return err
}

func newTable(name string, tags []string, fields []string, fieldTypes []types.ColumnType) (*table.Table, error) {
	tbl, err := table.New(name)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if err := tbl.AddTagColumn(t, types.STRING); err != nil {
			return nil, err
		}
	}
	for i, f := range fields {
		if err := tbl.AddFieldColumn(f, fieldTypes[i]); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

// WriteStep inserts a step event.
func (w *GreptimeWriter) WriteStep(e StepEvent) error {
	tbl, err := newTable(StepTable,
		[]string{"vehicle_id", "plan_id"},
		[]string{"step", "action", "phase", "mission_time"},
		[]types.ColumnType{types.INT64, types.STRING, types.STRING, types.FLOAT64})
	if err != nil {
		return err
	}
	if err := tbl.AddRow(e.VehicleID, e.PlanID, int64(e.Step), string(e.Action), string(e.Phase), e.MissionTime, e.Timestamp); err != nil {
		return err
	}
	return w.write(tbl)
}

// WriteAbort inserts an abort event.
func (w *GreptimeWriter) WriteAbort(e AbortEvent) error {
	tbl, err := newTable(AbortTable,
		[]string{"vehicle_id", "plan_id"},
		[]string{"step", "reason", "mode", "dropped_plans"},
		[]types.ColumnType{types.INT64, types.STRING, types.STRING, types.INT64})
	if err != nil {
		return err
	}
	if err := tbl.AddRow(e.VehicleID, e.PlanID, int64(e.Step), e.Reason, e.Mode, int64(e.Dropped), e.Timestamp); err != nil {
		return err
	}
	return w.write(tbl)
}

// WriteFault inserts a fault event.
func (w *GreptimeWriter) WriteFault(e FaultEvent) error {
	tbl, err := newTable(FaultTable,
		[]string{"vehicle_id", "plan_id"},
		[]string{"step", "error", "recovered"},
		[]types.ColumnType{types.INT64, types.STRING, types.BOOLEAN})
	if err != nil {
		return err
	}
	if err := tbl.AddRow(e.VehicleID, e.PlanID, int64(e.Step), e.Error, e.Recovered, e.Timestamp); err != nil {
		return err
	}
	return w.write(tbl)
}

// WriteDispatch inserts a dispatch event.
func (w *GreptimeWriter) WriteDispatch(e DispatchEvent) error {
	tbl, err := newTable(DispatchTable,
		[]string{"primary_id", "secondary_id"},
		[]string{"source_id", "value", "lat", "lon", "north", "east", "attempts", "error"},
		[]types.ColumnType{types.INT64, types.FLOAT64, types.FLOAT64, types.FLOAT64, types.FLOAT64, types.FLOAT64, types.INT64, types.STRING})
	if err != nil {
		return err
	}
	if err := tbl.AddRow(e.PrimaryID, e.SecondaryID, e.SourceID, e.Value, e.Lat, e.Lon, e.North, e.East, int64(e.Attempts), e.Error, e.Timestamp); err != nil {
		return err
	}
	return w.write(tbl)
}
