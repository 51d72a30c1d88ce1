package stats

import (
	"context"
	"log"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// GreptimeDBWriter writes performance rows to GreptimeDB via the ingester client
type GreptimeDBWriter struct {
	client     greptime.Client
	db         string
	perfTable  string
	transTable string
}

// NewGreptimeDBWriter creates a new GreptimeDB writer and auto-creates the tables if needed.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	ctx := ingesterContext.NewContext(context.Background())
	client, err := greptime.NewClient(ctx, &greptime.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, err
	}

	// Auto-create table schemas
	perfDDL := `
CREATE TABLE IF NOT EXISTS vj_performance (
  installation_id STRING TAG,
  channel STRING TAG,
  fps DOUBLE,
  effective_fps DOUBLE,
  memory DOUBLE,
  dom_nodes BIGINT,
  level BIGINT,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='30d')
`
	if _, err := client.SQL(ctx, perfDDL); err != nil {
		return nil, err
	}

	transDDL := `
CREATE TABLE IF NOT EXISTS vj_quality_transitions (
  installation_id STRING TAG,
  channel STRING TAG,
  from_level BIGINT,
  to_level BIGINT,
  cause STRING,
  fps DOUBLE,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='30d')
`
	if _, err := client.SQL(ctx, transDDL); err != nil {
		return nil, err
	}

	return &GreptimeDBWriter{
		client:     client,
		db:         database,
		perfTable:  "vj_performance",
		transTable: "vj_quality_transitions",
	}, nil
}

// Write inserts a single performance row.
func (w *GreptimeDBWriter) Write(row PerfRow) error {
	return w.WriteBatch([]PerfRow{row})
}

// WriteBatch inserts multiple performance rows.
func (w *GreptimeDBWriter) WriteBatch(rows []PerfRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(w.perfTable)
	tbl.AddTagColumn("installation_id", types.StringType, 0)
	tbl.AddTagColumn("channel", types.StringType, 0)
	tbl.AddFieldColumn("fps", types.Float64Type)
	tbl.AddFieldColumn("effective_fps", types.Float64Type)
	tbl.AddFieldColumn("memory", types.Float64Type)
	tbl.AddFieldColumn("dom_nodes", types.Int64Type)
	tbl.AddFieldColumn("level", types.Int64Type)
	tbl.SetTimeIndex("ts", types.TimestampType)

	for _, r := range rows {
		tbl.AppendTagValue("installation_id", r.InstallationID)
		tbl.AppendTagValue("channel", r.Channel)
		tbl.AppendFieldValue("fps", r.FPS)
		tbl.AppendFieldValue("effective_fps", r.EffectiveFPS)
		tbl.AppendFieldValue("memory", r.Memory)
		tbl.AppendFieldValue("dom_nodes", int64(r.DOMNodes))
		tbl.AppendFieldValue("level", int64(r.Level))
		tbl.AppendTimeIndex(r.Timestamp)
	}

	if err := w.client.Write(ctx, w.db, []*table.Table{tbl}); err != nil {
		log.Printf("[GreptimeDBWriter] Write failed: %v", err)
		return err
	}

	return nil
}

// WriteTransition inserts a single transition row.
func (w *GreptimeDBWriter) WriteTransition(row TransitionRow) error {
	return w.WriteTransitions([]TransitionRow{row})
}

// WriteTransitions inserts multiple transition rows.
func (w *GreptimeDBWriter) WriteTransitions(rows []TransitionRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(w.transTable)
	tbl.AddTagColumn("installation_id", types.StringType, 0)
	tbl.AddTagColumn("channel", types.StringType, 0)
	tbl.AddFieldColumn("from_level", types.Int64Type)
	tbl.AddFieldColumn("to_level", types.Int64Type)
	tbl.AddFieldColumn("cause", types.StringType)
	tbl.AddFieldColumn("fps", types.Float64Type)
	tbl.SetTimeIndex("ts", types.TimestampType)

	for _, r := range rows {
		tbl.AppendTagValue("installation_id", r.InstallationID)
		tbl.AppendTagValue("channel", r.Channel)
		tbl.AppendFieldValue("from_level", int64(r.FromLevel))
		tbl.AppendFieldValue("to_level", int64(r.ToLevel))
		tbl.AppendFieldValue("cause", r.Cause)
		tbl.AppendFieldValue("fps", r.FPS)
		tbl.AppendTimeIndex(r.Timestamp)
	}

	if err := w.client.Write(ctx, w.db, []*table.Table{tbl}); err != nil {
		log.Printf("[GreptimeDBWriter] WriteTransitions failed: %v", err)
		return err
	}

	return nil
}
