package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jean18/front/internal/common"
	"github.com/jean18/front/internal/loader"
	"github.com/jean18/front/internal/metrics"
	"github.com/jean18/front/internal/weather"
)

const (
	WeatherDAGID = "weather_api_data_pipeline"

	// DefaultWatermarkKey is the variable holding the last ingested observation timestamp.
	DefaultWatermarkKey = "weather_obs_last_date"

	taskStart       = "start"
	taskEnd         = "end"
	taskStartParam  = "start_param"
	taskExtractData = "extract_data"
	taskLoadData    = "load_data"
)

// Extractor runs the extraction flows.
type Extractor interface {
	ExtractStations(ctx context.Context, runTS time.Time) (weather.Extraction, error)
	ExtractObservations(ctx context.Context, runTS, start time.Time) (weather.Extraction, error)
}

// Loader executes one rendered SQL statement.
type Loader interface {
	Load(ctx context.Context, stmt string) error
}

// Renderer renders a load template for a snapshot.
type Renderer interface {
	Render(name string, data loader.TemplateData) (string, error)
}

// Variables is a named string store; ok is false when the key was never set.
type Variables interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// WeatherTasks holds the collaborators of the weather DAG.
type WeatherTasks struct {
	Extractor    Extractor
	Loader       Loader
	Templates    Renderer
	Variables    Variables
	WatermarkKey string
	Logger       *zap.Logger
}

// NewWeatherDAG wires start -> stations -> weather_obs -> end.
func NewWeatherDAG(w WeatherTasks) *DAG {
	if w.WatermarkKey == "" {
		w.WatermarkKey = DefaultWatermarkKey
	}
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	t := &w

	return &DAG{
		ID: WeatherDAGID,
		Groups: []Group{
			{Tasks: []Task{{ID: taskStart, Run: noop}}},
			{
				ID: weather.Stations.Name,
				Tasks: []Task{
					{ID: taskExtractData, Run: t.extractStations},
					{ID: taskLoadData, Run: t.loadStations},
				},
			},
			{
				ID: weather.WeatherObs.Name,
				Tasks: []Task{
					{ID: taskStartParam, Run: t.startParam},
					{ID: taskExtractData, Run: t.extractObservations},
					{ID: taskLoadData, Run: t.loadObservations},
				},
			},
			{Tasks: []Task{{ID: taskEnd, Run: noop}}},
		},
	}
}

func noop(context.Context, *RunContext) (Result, error) {
	return Done(nil), nil
}

func (t *WeatherTasks) extractStations(ctx context.Context, rc *RunContext) (Result, error) {
	ex, err := t.Extractor.ExtractStations(ctx, rc.LogicalDate)
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveRows(ex.Table, ex.Rows)
	return Done(ex), nil
}

func (t *WeatherTasks) loadStations(ctx context.Context, rc *RunContext) (Result, error) {
	ex, err := pullExtraction(rc, TaskKey(weather.Stations.Name, taskExtractData))
	if err != nil {
		return Result{}, err
	}
	return Done(nil), t.load(ctx, weather.Stations, ex.Path)
}

func (t *WeatherTasks) startParam(ctx context.Context, rc *RunContext) (Result, error) {
	last, err := t.lastWatermark(ctx)
	if err != nil {
		return Result{}, err
	}

	win := weather.ResolveStart(rc.LogicalDate, last)
	if win.Outcome == weather.OutcomeSkip {
		t.Logger.Info("data of this run was already loaded", zap.Time("logical_date", rc.LogicalDate))
		return Skip(win.Reason), nil
	}
	t.Logger.Info("resolved start", zap.String("start", common.FormatISO(win.Start)), zap.String("reason", win.Reason))
	return Done(win), nil
}

func (t *WeatherTasks) extractObservations(ctx context.Context, rc *RunContext) (Result, error) {
	v, _ := rc.Pull(TaskKey(weather.WeatherObs.Name, taskStartParam))
	win, ok := v.(weather.Window)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingUpstream, taskStartParam)
	}

	ex, err := t.Extractor.ExtractObservations(ctx, rc.LogicalDate, win.Start)
	if err != nil {
		return Result{}, err
	}
	if ex.Outcome == weather.OutcomeSkip {
		return Skip(ex.Reason), nil
	}
	metrics.ObserveRows(ex.Table, ex.Rows)
	return Done(ex), nil
}

// loadObservations loads the snapshot and then advances the watermark, so a
// batch only counts as ingested once it is in the database.
func (t *WeatherTasks) loadObservations(ctx context.Context, rc *RunContext) (Result, error) {
	ex, err := pullExtraction(rc, TaskKey(weather.WeatherObs.Name, taskExtractData))
	if err != nil {
		return Result{}, err
	}
	if err := t.load(ctx, weather.WeatherObs, ex.Path); err != nil {
		return Result{}, err
	}
	if ex.Watermark == nil {
		return Done(nil), nil
	}
	return Done(nil), t.advanceWatermark(ctx, *ex.Watermark)
}

func (t *WeatherTasks) load(ctx context.Context, table weather.TableMetadata, path string) error {
	stmt, err := t.Templates.Render(table.SQLPath, loader.TemplateData{Table: table.Name, SnapshotPath: path})
	if err != nil {
		return err
	}
	return t.Loader.Load(ctx, stmt)
}

func (t *WeatherTasks) lastWatermark(ctx context.Context) (*time.Time, error) {
	raw, ok, err := t.Variables.Get(ctx, t.WatermarkKey)
	if err != nil {
		return nil, fmt.Errorf("read variable %s: %w", t.WatermarkKey, err)
	}
	if !ok || isNullValue(raw) {
		return nil, nil
	}
	ts, err := common.ParseTimestamp(raw)
	if err != nil {
		return nil, fmt.Errorf("variable %s holds %q: %w", t.WatermarkKey, raw, err)
	}
	return &ts, nil
}

// advanceWatermark stores ts unless the stored value is already newer.
func (t *WeatherTasks) advanceWatermark(ctx context.Context, ts time.Time) error {
	current, err := t.lastWatermark(ctx)
	if err != nil {
		return err
	}
	if current != nil && !ts.After(*current) {
		t.Logger.Info("watermark unchanged", zap.String("watermark", common.FormatISO(*current)))
		return nil
	}

	value := common.FormatISO(ts)
	t.Logger.Info("updating variable", zap.String("key", t.WatermarkKey), zap.String("watermark", value))
	if err := t.Variables.Set(ctx, t.WatermarkKey, value); err != nil {
		return fmt.Errorf("write variable %s: %w", t.WatermarkKey, err)
	}
	metrics.SetWatermark(ts)
	return nil
}

func pullExtraction(rc *RunContext, key string) (weather.Extraction, error) {
	v, _ := rc.Pull(key)
	ex, ok := v.(weather.Extraction)
	if !ok || ex.Path == "" {
		return weather.Extraction{}, fmt.Errorf("%w: %s", ErrMissingUpstream, key)
	}
	return ex, nil
}

func isNullValue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "unset":
		return true
	}
	return false
}
