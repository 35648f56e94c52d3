// Package loader is the query boundary between the parquet traffic log and
// the analytical components. Every SQL statement the pipeline runs lives
// here, and every result is scanned into an explicit record type so missing
// columns fail at this boundary instead of deep inside a model.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// trafficHuman is the classification label for likely-human requests; every
// other label counts as automated traffic.
const trafficHuman = "Likely Human"

// MonthlyVisit is one (month, tool) visit count from the apps site.
type MonthlyVisit struct {
	Month  time.Time
	Tool   string
	Visits int64
}

// RequestRow carries the request-level fields the bot classifier consumes.
// SessionID is populated only for tracked-interaction rows.
type RequestRow struct {
	TrafficType string
	SessionID   string
	Status      float64
	ScBytes     float64
	CsBytes     float64
	TimeTaken   float64
	TTFB        float64
	URILen      float64
	HasQuery    float64
	UALen       float64
	RefererLen  float64
	HourUTC     float64
	UALower     string
}

// CountryAggregate is the request-level per-country rollup for the geo
// anomaly detector.
type CountryAggregate struct {
	Country       string
	TotalRequests int64
	HumanRequests int64
	BotRequests   int64
	AIBotRequests int64
	UACardinality int64
	AvgTimeTaken  float64
	AvgScBytes    float64
}

func quotePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}

// LoadMonthlyToolVisits returns human visit counts per (month, tool) for the
// tracked app paths. Months with no visits are absent here; BuildMonthlyPivot
// densifies the axis.
func LoadMonthlyToolVisits(ctx context.Context, db *sql.DB, inputPath string) ([]MonthlyVisit, error) {
	query := fmt.Sprintf(`
	SELECT
	  date_trunc('month', date)::DATE AS month_start,
	  CASE cs_uri_stem
	    WHEN '/eui/' THEN 'EUI'
	    WHEN '/rui/' THEN 'RUI'
	    WHEN '/cde/' THEN 'CDE'
	    WHEN '/ftu-explorer/' THEN 'FTU Explorer'
	    WHEN '/kg-explorer/' THEN 'KG Explorer'
	  END AS tool,
	  count(*)::BIGINT AS visits
	FROM read_parquet('%s')
	WHERE traffic_type = 'Likely Human'
	  AND site = 'Apps'
	  AND cs_uri_stem IN ('/eui/','/rui/','/cde/','/ftu-explorer/','/kg-explorer/')
	GROUP BY 1, 2
	ORDER BY 1, 2
	`, quotePath(inputPath))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error fetching monthly tool visits: %w", err)
	}
	defer rows.Close()

	var out []MonthlyVisit
	for rows.Next() {
		var mv MonthlyVisit
		if err := rows.Scan(&mv.Month, &mv.Tool, &mv.Visits); err != nil {
			return nil, fmt.Errorf("error scanning monthly tool visits: %w", err)
		}
		mv.Month = mv.Month.UTC()
		out = append(out, mv)
	}
	return out, rows.Err()
}

// LoadEventRows returns the raw tracked-interaction rows, one per collector
// hit. The query string stays opaque here; field extraction, validation, and
// canonicalization happen in Canonicalize.
func LoadEventRows(ctx context.Context, db *sql.DB, inputPath string) ([]RawEventRow, error) {
	query := fmt.Sprintf(`
	SELECT
	  coalesce(anon_id, '')                 AS anon_id,
	  coalesce(CAST(date AS VARCHAR), '')   AS date,
	  coalesce(CAST(time AS VARCHAR), '')   AS time,
	  coalesce(timestamp_ms, 0)             AS timestamp_ms,
	  coalesce(c_country, '')               AS c_country,
	  coalesce(cs_uri_query, '')            AS cs_uri_query
	FROM read_parquet('%s')
	WHERE site = 'Events'
	  AND cs_uri_stem = '/tr'
	  AND traffic_type = 'Likely Human'
	`, quotePath(inputPath))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error fetching event rows: %w", err)
	}
	defer rows.Close()

	var out []RawEventRow
	for rows.Next() {
		var r RawEventRow
		if err := rows.Scan(
			&r.AnonID, &r.Date, &r.Time, &r.TimestampMs, &r.Country, &r.RawQuery,
		); err != nil {
			return nil, fmt.Errorf("error scanning event row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const requestFeatureColumns = `
	  coalesce(sc_status, 0)::DOUBLE                                   AS sc_status,
	  coalesce(sc_bytes, 0)::DOUBLE                                    AS sc_bytes,
	  coalesce(cs_bytes, 0)::DOUBLE                                    AS cs_bytes,
	  coalesce(time_taken, 0.0)::DOUBLE                                AS time_taken,
	  coalesce(time_to_first_byte, 0.0)::DOUBLE                        AS ttfb,
	  length(coalesce(cs_uri_stem, ''))::DOUBLE                        AS uri_len,
	  CASE WHEN cs_uri_query IS NULL OR cs_uri_query IN ('', '-')
	       THEN 0.0 ELSE 1.0 END                                       AS has_query,
	  length(coalesce(cs_user_agent, ''))::DOUBLE                      AS ua_len,
	  length(coalesce(cs_referer, ''))::DOUBLE                         AS referer_len,
	  coalesce(try_cast(substr(CAST(time AS VARCHAR), 1, 2) AS INTEGER), 0)::DOUBLE AS hour_utc,
	  lower(coalesce(cs_user_agent, ''))                               AS ua_lower`

// LoadBotTrainingRows returns a deterministic ~permille/1000 hashed sample of
// all labeled request rows for classifier training.
func LoadBotTrainingRows(ctx context.Context, db *sql.DB, inputPath string, permille int) ([]RequestRow, error) {
	query := fmt.Sprintf(`
	SELECT
	  traffic_type,%s
	FROM read_parquet('%s')
	WHERE traffic_type IN ('Likely Human', 'Bot', 'AI-Assistant / Bot')
	  AND abs(hash(x_edge_request_id)) %% 1000 < %d
	`, requestFeatureColumns, quotePath(inputPath), permille)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error sampling bot training rows: %w", err)
	}
	defer rows.Close()

	var out []RequestRow
	for rows.Next() {
		var r RequestRow
		if err := rows.Scan(
			&r.TrafficType, &r.Status, &r.ScBytes, &r.CsBytes, &r.TimeTaken,
			&r.TTFB, &r.URILen, &r.HasQuery, &r.UALen, &r.RefererLen,
			&r.HourUTC, &r.UALower,
		); err != nil {
			return nil, fmt.Errorf("error scanning bot training row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadTrackedRequestRows returns the tracked-interaction rows with their
// request-level features and session ids, for post-training session scoring.
func LoadTrackedRequestRows(ctx context.Context, db *sql.DB, inputPath string) ([]RequestRow, error) {
	query := fmt.Sprintf(`
	SELECT
	  coalesce(cs_uri_query, '') AS cs_uri_query,%s
	FROM read_parquet('%s')
	WHERE site = 'Events'
	  AND cs_uri_stem = '/tr'
	  AND traffic_type = 'Likely Human'
	  AND cs_uri_query LIKE '%%sessionId=%%'
	`, requestFeatureColumns, quotePath(inputPath))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error fetching tracked request rows: %w", err)
	}
	defer rows.Close()

	var out []RequestRow
	for rows.Next() {
		var r RequestRow
		var rawQuery string
		if err := rows.Scan(
			&rawQuery, &r.Status, &r.ScBytes, &r.CsBytes, &r.TimeTaken,
			&r.TTFB, &r.URILen, &r.HasQuery, &r.UALen, &r.RefererLen,
			&r.HourUTC, &r.UALower,
		); err != nil {
			return nil, fmt.Errorf("error scanning tracked request row: %w", err)
		}
		r.SessionID = NormalizeID(ParseQueryField(rawQuery, "sessionId"))
		if r.SessionID == "" {
			continue
		}
		r.TrafficType = trafficHuman
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadCountryAggregates returns the request-level per-country rollups.
func LoadCountryAggregates(ctx context.Context, db *sql.DB, inputPath string) ([]CountryAggregate, error) {
	query := fmt.Sprintf(`
	SELECT
	  c_country,
	  count(*)::BIGINT                                                        AS total_requests,
	  count(*) FILTER (WHERE traffic_type = 'Likely Human')::BIGINT           AS human_requests,
	  count(*) FILTER (WHERE traffic_type = 'Bot')::BIGINT                    AS bot_requests,
	  count(*) FILTER (WHERE traffic_type = 'AI-Assistant / Bot')::BIGINT     AS ai_bot_requests,
	  count(DISTINCT cs_user_agent)::BIGINT                                   AS ua_cardinality,
	  coalesce(avg(time_taken), 0.0)                                          AS avg_time_taken,
	  coalesce(avg(sc_bytes), 0.0)                                            AS avg_sc_bytes
	FROM read_parquet('%s')
	WHERE c_country IS NOT NULL
	  AND c_country <> '-'
	GROUP BY 1
	`, quotePath(inputPath))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error fetching country aggregates: %w", err)
	}
	defer rows.Close()

	var out []CountryAggregate
	for rows.Next() {
		var c CountryAggregate
		if err := rows.Scan(
			&c.Country, &c.TotalRequests, &c.HumanRequests, &c.BotRequests,
			&c.AIBotRequests, &c.UACardinality, &c.AvgTimeTaken, &c.AvgScBytes,
		); err != nil {
			return nil, fmt.Errorf("error scanning country aggregate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
