package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/app/observability/metrics"
	"github.com/xco2/tripspot/internal/types"
)

// Pool is the subset of pgxpool.Pool the repository needs.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*PostgresRepository)(nil)

// Repository persists places, the route and the settings record.
// Every place mutation removes the stored route in the same transaction.
type Repository interface {
	ListPlaces(ctx context.Context) ([]types.Place, error)
	GetPlace(ctx context.Context, id string) (*types.Place, error)
	InsertPlace(ctx context.Context, p types.Place) error
	UpdatePlace(ctx context.Context, p types.Place) error
	DeletePlace(ctx context.Context, id string) error
	// ReplacePlaces swaps the whole place collection, storing route when it is not nil.
	ReplacePlaces(ctx context.Context, places []types.Place, route *types.Route) error

	// GetRoute returns nil without error when no route is stored.
	GetRoute(ctx context.Context) (*types.Route, error)
	SaveRoute(ctx context.Context, r types.Route) error
	ClearRoute(ctx context.Context) error

	// GetSettings returns types.ErrNotFound until settings are saved once.
	GetSettings(ctx context.Context) (*types.Settings, error)
	SaveSettings(ctx context.Context, s types.Settings) error
}

type PostgresRepository struct {
	logger *slog.Logger
	pgpool Pool
}

func NewPostgresRepository(pgpool Pool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

const (
	selectPlacesSQL = `SELECT id, name, city, category, note, latitude, longitude FROM places`
	insertPlaceSQL  = `INSERT INTO places (id, name, city, category, note, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	clearRouteSQL = `DELETE FROM route`
)

func (r *PostgresRepository) startSpan(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return otel.Tracer("StoreRepo").Start(ctx, op, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", table),
	))
}

// finish records latency and the outcome of one repository call on its span.
func (r *PostgresRepository) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("operation", op))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil && !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrStaleRoute) {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return
	}
	span.SetStatus(codes.Ok, op)
}

func (r *PostgresRepository) ListPlaces(ctx context.Context) (places []types.Place, err error) {
	ctx, span := r.startSpan(ctx, "ListPlaces", "places")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "ListPlaces", start, err) }(time.Now())

	rows, err := r.pgpool.Query(ctx, selectPlacesSQL+` ORDER BY position`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query places", slog.Any("error", err))
		return nil, fmt.Errorf("database error listing places: %w", err)
	}
	defer rows.Close()

	places = []types.Place{}
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("database error scanning place: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating places: %w", err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(places)))
	return places, nil
}

func (r *PostgresRepository) GetPlace(ctx context.Context, id string) (place *types.Place, err error) {
	ctx, span := r.startSpan(ctx, "GetPlace", "places")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "GetPlace", start, err) }(time.Now())

	p, err := scanPlace(r.pgpool.QueryRow(ctx, selectPlacesSQL+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("place %s: %w", id, types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query place", slog.String("placeID", id), slog.Any("error", err))
		return nil, fmt.Errorf("database error fetching place: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) InsertPlace(ctx context.Context, p types.Place) (err error) {
	ctx, span := r.startSpan(ctx, "InsertPlace", "places")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "InsertPlace", start, err) }(time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertPlaceSQL, placeArgs(p)...); err != nil {
			return mapWriteError(err, "insert place")
		}
		if _, err := tx.Exec(ctx, clearRouteSQL); err != nil {
			return fmt.Errorf("database error clearing route: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) UpdatePlace(ctx context.Context, p types.Place) (err error) {
	ctx, span := r.startSpan(ctx, "UpdatePlace", "places")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "UpdatePlace", start, err) }(time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE places SET name = $2, city = $3, category = $4, note = $5,
			latitude = $6, longitude = $7, updated_at = NOW() WHERE id = $1`, placeArgs(p)...)
		if err != nil {
			return mapWriteError(err, "update place")
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("place %s: %w", p.ID, types.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, clearRouteSQL); err != nil {
			return fmt.Errorf("database error clearing route: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) DeletePlace(ctx context.Context, id string) (err error) {
	ctx, span := r.startSpan(ctx, "DeletePlace", "places")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "DeletePlace", start, err) }(time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("database error deleting place: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("place %s: %w", id, types.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, clearRouteSQL); err != nil {
			return fmt.Errorf("database error clearing route: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) ReplacePlaces(ctx context.Context, places []types.Place, route *types.Route) (err error) {
	ctx, span := r.startSpan(ctx, "ReplacePlaces", "places")
	span.SetAttributes(attribute.Int("db.rows", len(places)))
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "ReplacePlaces", start, err) }(time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, clearRouteSQL); err != nil {
			return fmt.Errorf("database error clearing route: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM places`); err != nil {
			return fmt.Errorf("database error clearing places: %w", err)
		}
		for _, p := range places {
			if _, err := tx.Exec(ctx, insertPlaceSQL, placeArgs(p)...); err != nil {
				return mapWriteError(err, "insert place")
			}
		}
		if route != nil {
			return upsertRoute(ctx, tx, *route)
		}
		return nil
	})
}

func (r *PostgresRepository) GetRoute(ctx context.Context) (route *types.Route, err error) {
	ctx, span := r.startSpan(ctx, "GetRoute", "route")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "GetRoute", start, err) }(time.Now())

	var rt types.Route
	err = r.pgpool.QueryRow(ctx, `SELECT sequence, total_duration_minutes, advice FROM route WHERE id = 1`).
		Scan(&rt.Sequence, &rt.TotalDurationMinutes, &rt.Advice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Failed to query route", slog.Any("error", err))
		return nil, fmt.Errorf("database error fetching route: %w", err)
	}
	if rt.Sequence == nil {
		rt.Sequence = []string{}
	}
	return &rt, nil
}

func (r *PostgresRepository) SaveRoute(ctx context.Context, route types.Route) (err error) {
	ctx, span := r.startSpan(ctx, "SaveRoute", "route")
	span.SetAttributes(attribute.Int("route.length", len(route.Sequence)))
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "SaveRoute", start, err) }(time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		ids := distinct(route.Sequence)
		var found int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM places WHERE id = ANY($1)`, ids).Scan(&found); err != nil {
			return fmt.Errorf("database error checking route places: %w", err)
		}
		if found != int64(len(ids)) {
			return fmt.Errorf("%d of %d places missing: %w", int64(len(ids))-found, len(ids), types.ErrStaleRoute)
		}
		return upsertRoute(ctx, tx, route)
	})
}

func (r *PostgresRepository) ClearRoute(ctx context.Context) (err error) {
	ctx, span := r.startSpan(ctx, "ClearRoute", "route")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "ClearRoute", start, err) }(time.Now())

	if _, err = r.pgpool.Exec(ctx, clearRouteSQL); err != nil {
		return fmt.Errorf("database error clearing route: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSettings(ctx context.Context) (settings *types.Settings, err error) {
	ctx, span := r.startSpan(ctx, "GetSettings", "settings")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "GetSettings", start, err) }(time.Now())

	var s types.Settings
	err = r.pgpool.QueryRow(ctx, `SELECT amap_key, amap_security_code, llm_api_key, llm_base_url, llm_model
		FROM settings WHERE id = 1`).Scan(&s.AMapKey, &s.AMapSecurityCode, &s.LLMAPIKey, &s.LLMBaseURL, &s.LLMModel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("settings: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query settings", slog.Any("error", err))
		return nil, fmt.Errorf("database error fetching settings: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) SaveSettings(ctx context.Context, s types.Settings) (err error) {
	ctx, span := r.startSpan(ctx, "SaveSettings", "settings")
	defer span.End()
	defer func(start time.Time) { r.finish(ctx, span, "SaveSettings", start, err) }(time.Now())

	_, err = r.pgpool.Exec(ctx, `INSERT INTO settings (id, amap_key, amap_security_code, llm_api_key, llm_base_url, llm_model)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET amap_key = EXCLUDED.amap_key,
			amap_security_code = EXCLUDED.amap_security_code, llm_api_key = EXCLUDED.llm_api_key,
			llm_base_url = EXCLUDED.llm_base_url, llm_model = EXCLUDED.llm_model, updated_at = NOW()`,
		s.AMapKey, s.AMapSecurityCode, s.LLMAPIKey, s.LLMBaseURL, s.LLMModel)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save settings", slog.Any("error", err))
		return fmt.Errorf("database error saving settings: %w", err)
	}
	return nil
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertRoute(ctx context.Context, tx pgx.Tx, route types.Route) error {
	_, err := tx.Exec(ctx, `INSERT INTO route (id, sequence, total_duration_minutes, advice)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET sequence = EXCLUDED.sequence,
			total_duration_minutes = EXCLUDED.total_duration_minutes, advice = EXCLUDED.advice, created_at = NOW()`,
		route.Sequence, route.TotalDurationMinutes, route.Advice)
	if err != nil {
		return fmt.Errorf("database error saving route: %w", err)
	}
	return nil
}

func scanPlace(row pgx.Row) (types.Place, error) {
	var p types.Place
	var category string
	if err := row.Scan(&p.ID, &p.Name, &p.City, &category, &p.Note, &p.Latitude, &p.Longitude); err != nil {
		return types.Place{}, err
	}
	p.Category = types.ParseCategory(category)
	return p, nil
}

func placeArgs(p types.Place) []any {
	return []any{p.ID, p.Name, p.City, string(p.Category), p.Note, p.Latitude, p.Longitude}
}

func mapWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: duplicate id: %w", op, types.ErrInvalidInput)
		case "23514":
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, types.ErrInvalidInput)
		}
	}
	return fmt.Errorf("database error on %s: %w", op, err)
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
