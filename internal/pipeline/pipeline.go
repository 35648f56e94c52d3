// Package pipeline orchestrates a full analysis run: load the traffic log,
// derive the session table, run every analytical component, and persist one
// JSON artifact per component. A failing component degrades to an empty
// artifact with a note; only a missing input file aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"atlaslens/internal/artifacts"
	"atlaslens/internal/assoc"
	"atlaslens/internal/botscore"
	"atlaslens/internal/churn"
	"atlaslens/internal/config"
	"atlaslens/internal/database"
	"atlaslens/internal/errcluster"
	"atlaslens/internal/forecast"
	"atlaslens/internal/geo"
	"atlaslens/internal/journeys"
	"atlaslens/internal/loader"
	"atlaslens/internal/segments"
	"atlaslens/internal/sessions"
	"atlaslens/internal/spikes"
)

// Artifact file names.
const (
	FileForecast        = "forecast_tool_visits.json"
	FileDetectedEvents  = "detected_events.json"
	FileUserSegments    = "user_segments.json"
	FileReturnProb      = "return_probability.json"
	FileTransitions     = "transition_matrix.json"
	FileCooccurrence    = "feature_cooccurrence.json"
	FileBotScores       = "bot_scores.json"
	FileErrorClusters   = "error_clusters.json"
	FileSuspiciousGeo   = "suspicious_countries.json"
	FileRecommendations = "cross_tool_recommendations.json"
	FileMetadata        = "ml_pipeline_metadata.json"
)

// ForecastArtifact wraps the forecast points with the horizon they cover.
type ForecastArtifact struct {
	HorizonMonths int              `json:"horizon_months"`
	Points        []forecast.Point `json:"points"`
	Note          string           `json:"note,omitempty"`
}

// EventsArtifact wraps the detected traffic events.
type EventsArtifact struct {
	Events []spikes.Event `json:"events"`
	Note   string         `json:"note,omitempty"`
}

// RecommendationsArtifact wraps the cross-tool suggestions.
type RecommendationsArtifact struct {
	Recommendations []journeys.Recommendation `json:"recommendations"`
	Note            string                    `json:"note,omitempty"`
}

// RowCounts records the volume each run processed.
type RowCounts struct {
	MonthlyPoints int `json:"monthly_points"`
	EventRows     int `json:"event_rows"`
	Sessions      int `json:"sessions"`
	Transactions  int `json:"transactions"`
}

// Metadata is the run summary artifact.
type Metadata struct {
	GeneratedAtUTC        string    `json:"generated_at_utc"`
	Input                 string    `json:"input"`
	OutputDir             string    `json:"output_dir"`
	ForecastHorizonMonths int       `json:"forecast_horizon_months"`
	Rows                  RowCounts `json:"rows"`
	Outputs               []string  `json:"outputs"`
}

// Pipeline wires the loader, the analytical components, and the artifact
// writer together for one run.
type Pipeline struct {
	cfg    *config.Config
	policy config.Policy
	db     *database.Manager
	writer *artifacts.Writer
	logger *slog.Logger

	outputs []string
}

// New builds a pipeline from its dependencies.
func New(cfg *config.Config, policy config.Policy, db *database.Manager, writer *artifacts.Writer, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, policy: policy, db: db, writer: writer, logger: logger}
}

// Run executes every component in dependency order and returns the run
// metadata. The input file must exist; everything past that check degrades
// per component instead of failing the run.
func (p *Pipeline) Run(ctx context.Context) (*Metadata, error) {
	if _, err := os.Stat(p.cfg.InputPath); err != nil {
		return nil, fmt.Errorf("input file not found: %w", err)
	}

	started := time.Now().UTC()
	p.logger.Info("Pipeline started", slog.String("input", p.cfg.InputPath))

	meta := &Metadata{
		GeneratedAtUTC:        started.Format(time.RFC3339),
		Input:                 p.cfg.InputPath,
		OutputDir:             p.writer.Dir(),
		ForecastHorizonMonths: p.cfg.ForecastHorizonMonths,
	}

	p.runVisitBranch(ctx, meta)
	events, table := p.runEventBranch(ctx, meta)
	p.runBotScores(ctx, table)
	p.write(FileErrorClusters, func() any {
		return errcluster.Group(events, p.policy)
	}, errcluster.Result{Clusters: []errcluster.Cluster{}, Note: "component failed"})
	p.runGeo(ctx, table)

	meta.Outputs = append(p.outputs, FileMetadata)
	if err := p.writer.Write(FileMetadata, meta); err != nil {
		return nil, err
	}

	p.logger.Info("Pipeline finished",
		slog.Int("artifacts", len(meta.Outputs)),
		slog.Duration("elapsed", time.Since(started)))
	return meta, nil
}

// runVisitBranch handles the components fed by the monthly visit pivot.
func (p *Pipeline) runVisitBranch(ctx context.Context, meta *Metadata) {
	visits, err := loader.LoadMonthlyToolVisits(ctx, p.db.DB(), p.cfg.InputPath)
	if err != nil {
		p.logger.Error("Loading monthly visits failed", slog.Any("error", err))
	}
	meta.Rows.MonthlyPoints = len(visits)
	pivot := loader.BuildMonthlyPivot(visits)

	p.write(FileForecast, func() any {
		engine := forecast.NewEngine(p.policy, p.db.Threads(), p.logger)
		return ForecastArtifact{
			HorizonMonths: p.cfg.ForecastHorizonMonths,
			Points:        engine.Generate(ctx, pivot, p.cfg.ForecastHorizonMonths),
		}
	}, ForecastArtifact{HorizonMonths: p.cfg.ForecastHorizonMonths, Points: []forecast.Point{}, Note: "component failed"})

	p.write(FileDetectedEvents, func() any {
		return EventsArtifact{Events: spikes.NewDetector(p.policy).Detect(pivot)}
	}, EventsArtifact{Events: []spikes.Event{}, Note: "component failed"})
}

// runEventBranch derives the session table and runs everything behavioral.
// The canonical events and session table are returned for the later stages.
func (p *Pipeline) runEventBranch(ctx context.Context, meta *Metadata) ([]loader.CanonicalEvent, []sessions.FeatureVector) {
	rows, err := loader.LoadEventRows(ctx, p.db.DB(), p.cfg.InputPath)
	if err != nil {
		p.logger.Error("Loading event rows failed", slog.Any("error", err))
	}
	meta.Rows.EventRows = len(rows)

	events := loader.Canonicalize(rows)
	table := sessions.Build(events)
	meta.Rows.Sessions = len(table)

	p.write(FileUserSegments, func() any {
		return segments.Cluster(table, p.policy)
	}, segments.Result{Segments: []segments.Segment{}, Note: "component failed"})

	p.write(FileReturnProb, func() any {
		return churn.Model(events, table, p.policy)
	}, churn.Result{Note: "component failed"})

	sequences := journeys.BuildSequences(events)
	p.write(FileTransitions, func() any {
		return journeys.TransitionMatrix(sequences, 25)
	}, journeys.TransitionResult{Edges: []journeys.Edge{}, TopPaths: []journeys.PathCount{}})

	p.write(FileRecommendations, func() any {
		return RecommendationsArtifact{Recommendations: journeys.Recommend(sequences, p.policy)}
	}, RecommendationsArtifact{Recommendations: []journeys.Recommendation{}, Note: "component failed"})

	transactions := assoc.BuildTransactions(events)
	meta.Rows.Transactions = len(transactions)
	p.write(FileCooccurrence, func() any {
		return assoc.Mine(transactions, p.policy)
	}, assoc.Result{Rules: []assoc.Rule{}, Note: "component failed"})

	return events, table
}

func (p *Pipeline) runBotScores(ctx context.Context, table []sessions.FeatureVector) {
	p.write(FileBotScores, func() any {
		training, err := loader.LoadBotTrainingRows(ctx, p.db.DB(), p.cfg.InputPath, p.policy.BotSamplePermille)
		if err != nil {
			p.logger.Error("Loading bot training sample failed", slog.Any("error", err))
			return botscore.Result{Note: "training sample unavailable"}
		}
		tracked, err := loader.LoadTrackedRequestRows(ctx, p.db.DB(), p.cfg.InputPath)
		if err != nil {
			p.logger.Error("Loading tracked request rows failed", slog.Any("error", err))
			tracked = nil
		}
		return botscore.Score(training, tracked, table, p.policy)
	}, botscore.Result{Note: "component failed"})
}

func (p *Pipeline) runGeo(ctx context.Context, table []sessions.FeatureVector) {
	p.write(FileSuspiciousGeo, func() any {
		aggregates, err := loader.LoadCountryAggregates(ctx, p.db.DB(), p.cfg.InputPath)
		if err != nil {
			p.logger.Error("Loading country aggregates failed", slog.Any("error", err))
			return geo.Result{SuspiciousCountries: []geo.CountryScore{}, Note: "country aggregates unavailable"}
		}
		return geo.Detect(aggregates, table, p.policy)
	}, geo.Result{SuspiciousCountries: []geo.CountryScore{}, Note: "component failed"})
}

// write runs one component behind a panic boundary and persists its result.
// A panicking or failing component writes the fallback payload so consumers
// always find a syntactically valid artifact.
func (p *Pipeline) write(name string, build func() any, fallback any) {
	payload := func() (out any) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Component panicked", slog.String("artifact", name), slog.Any("panic", r))
				out = fallback
			}
		}()
		return build()
	}()

	if err := p.writer.Write(name, payload); err != nil {
		p.logger.Error("Writing artifact failed", slog.String("artifact", name), slog.Any("error", err))
		return
	}
	p.outputs = append(p.outputs, name)
	p.logger.Info("Artifact written", slog.String("artifact", name))
}
