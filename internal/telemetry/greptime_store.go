package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// Ingester is the subset of the GreptimeDB ingester client used for writes.
type Ingester interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// DefaultTable holds readings when no table name is configured.
const DefaultTable = "mission_readings"

// GreptimeDB status code for a missing table.
const codeTableNotFound = 4001

// GreptimeStore writes readings through the gRPC ingester and reads them
// back through the HTTP SQL API.
type GreptimeStore struct {
	client   Ingester
	endpoint string // e.g. http://localhost:4000
	database string
	table    string
	http     *http.Client
}

// GreptimeOptions configures a GreptimeStore.
type GreptimeOptions struct {
	HTTPEndpoint string
	Database     string
	Table        string
	HTTPClient   *http.Client
}

// NewGreptimeStore creates a store. Writes go through client; queries go to
// opts.HTTPEndpoint.
func NewGreptimeStore(client Ingester, opts GreptimeOptions) *GreptimeStore {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if opts.Database == "" {
		opts.Database = "public"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GreptimeStore{
		client:   client,
		endpoint: strings.TrimRight(opts.HTTPEndpoint, "/"),
		database: opts.Database,
		table:    opts.Table,
		http:     opts.HTTPClient,
	}
}

// Append inserts readings in one table write.
func (s *GreptimeStore) Append(ctx context.Context, readings ...Reading) error {
	if len(readings) == 0 {
		return nil
	}
	tbl, err := table.New(s.table)
	if err != nil {
		return err
	}
	for _, c := range []string{"vehicle_id", "mission_id"} {
		if err := tbl.AddTagColumn(c, types.STRING); err != nil {
			return err
		}
	}
	if err := tbl.AddFieldColumn("record_id", types.INT64); err != nil {
		return err
	}
	for _, c := range []string{"lat", "lon", "alt"} {
		if err := tbl.AddFieldColumn(c, types.FLOAT64); err != nil {
			return err
		}
	}
	if err := tbl.AddFieldColumn("payload", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range readings {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for record %d: %w", r.ID, err)
		}
		if err := tbl.AddRow(r.VehicleID, r.MissionID, r.ID, r.Lat, r.Lon, r.Alt, string(payload), r.Timestamp); err != nil {
			return err
		}
	}
	if _, err := s.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write %d readings: %w", len(readings), err)
	}
	return nil
}

// Query implements Querier using the SQL endpoint.
func (s *GreptimeStore) Query(ctx context.Context, vehicleID, missionID string, sinceID int64) ([]Reading, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT record_id, vehicle_id, mission_id, lat, lon, alt, payload, ts FROM %s WHERE vehicle_id = %s",
		s.table, quote(vehicleID))
	if missionID != "" {
		fmt.Fprintf(&b, " AND mission_id = %s", quote(missionID))
	}
	fmt.Fprintf(&b, " AND record_id > %d ORDER BY record_id ASC", sinceID)

	res, err := s.sql(ctx, b.String())
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	idx := make(map[string]int, len(res.Schema.ColumnSchemas))
	for i, c := range res.Schema.ColumnSchemas {
		idx[c.Name] = i
	}
	col := func(row []any, name string) any {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return nil
		}
		return row[i]
	}

	out := make([]Reading, 0, len(res.Rows))
	for _, row := range res.Rows {
		r := Reading{
			ID:        toInt64(col(row, "record_id")),
			VehicleID: toString(col(row, "vehicle_id")),
			MissionID: toString(col(row, "mission_id")),
			Lat:       toFloat(col(row, "lat")),
			Lon:       toFloat(col(row, "lon")),
			Alt:       toFloat(col(row, "alt")),
			Timestamp: time.UnixMilli(toInt64(col(row, "ts"))).UTC(),
		}
		if p := toString(col(row, "payload")); p != "" {
			if err := json.Unmarshal([]byte(p), &r.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for record %d: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

type sqlRecords struct {
	Schema struct {
		ColumnSchemas []struct {
			Name     string `json:"name"`
			DataType string `json:"data_type"`
		} `json:"column_schemas"`
	} `json:"schema"`
	Rows [][]any `json:"rows"`
}

type sqlResponse struct {
	Code   int    `json:"code"`
	Error  string `json:"error"`
	Output []struct {
		Records *sqlRecords `json:"records"`
	} `json:"output"`
}

// sql runs a query and returns the first record set. A missing table yields
// nil without error since nothing has been recorded yet.
func (s *GreptimeStore) sql(ctx context.Context, query string) (*sqlRecords, error) {
	u := fmt.Sprintf("%s/v1/sql?db=%s", s.endpoint, url.QueryEscape(s.database))
	form := url.Values{"sql": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("greptime query: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out sqlResponse
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("greptime query: status %d: %w", resp.StatusCode, err)
	}
	if out.Code == codeTableNotFound {
		return nil, nil
	}
	if out.Error != "" || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("greptime query: status %d code %d: %s", resp.StatusCode, out.Code, out.Error)
	}
	for _, o := range out.Output {
		if o.Records != nil {
			return o.Records, nil
		}
	}
	return nil, nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return int64(f)
	case float64:
		return int64(x)
	case string:
		i, _ := strconv.ParseInt(x, 10, 64)
		return i
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case json.Number:
		f, _ := x.Float64()
		return f
	case float64:
		return x
	}
	return 0
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
