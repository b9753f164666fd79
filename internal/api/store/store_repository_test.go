package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xco2/tripspot/internal/types"
)

var placeColumns = []string{"id", "name", "city", "category", "note", "latitude", "longitude"}

func setupRepositoryTest(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func TestPostgresRepository_ListPlaces(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name, city, category, note, latitude, longitude FROM places ORDER BY position").
		WillReturnRows(pgxmock.NewRows(placeColumns).
			AddRow("p1", "武侯祠", "成都", "spot", "下午去", 30.6463, 104.0482).
			AddRow("p2", "锦里", "成都", "snack", "", 0.0, 0.0))

	places, err := repo.ListPlaces(ctx)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, types.Place{ID: "p1", Name: "武侯祠", City: "成都", Category: types.CategorySpot, Note: "下午去", Latitude: 30.6463, Longitude: 104.0482}, places[0])
	assert.Equal(t, types.CategoryOther, places[1].Category)
	assert.False(t, places[1].Located())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetPlace(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("FROM places WHERE id").WithArgs("p1").
			WillReturnRows(pgxmock.NewRows(placeColumns).AddRow("p1", "锦里", "成都", "food", "", 30.6448, 104.0503))

		p, err := repo.GetPlace(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "锦里", p.Name)
		assert.Equal(t, types.CategoryFood, p.Category)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("FROM places WHERE id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetPlace(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeletePlaceClearsRoute(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM places WHERE id").WithArgs("p1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec("DELETE FROM route").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		require.NoError(t, repo.DeletePlace(ctx, "p1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing place rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM places WHERE id").WithArgs("ghost").WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectRollback()

		err := repo.DeletePlace(ctx, "ghost")
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_InsertPlace(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()
	p := types.Place{ID: "p1", Name: "锦里", City: "成都", Category: types.CategoryFood}

	t.Run("insert clears route", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO places").WithArgs("p1", "锦里", "成都", "food", "", 0.0, 0.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("DELETE FROM route").WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectCommit()

		require.NoError(t, repo.InsertPlace(ctx, p))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO places").WithArgs("p1", "锦里", "成都", "food", "", 0.0, 0.0).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		err := repo.InsertPlace(ctx, p)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_ReplacePlaces(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()
	places := []types.Place{
		{ID: "a", Name: "武侯祠", City: "成都", Category: types.CategorySpot, Latitude: 30.6463, Longitude: 104.0482},
		{ID: "b", Name: "锦里", City: "成都", Category: types.CategoryFood, Latitude: 30.6448, Longitude: 104.0503},
	}
	route := &types.Route{Sequence: []string{"a", "b"}, TotalDurationMinutes: 10, Advice: "先逛武侯祠"}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM route").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM places").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("INSERT INTO places").WithArgs("a", "武侯祠", "成都", "spot", "", 30.6463, 104.0482).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO places").WithArgs("b", "锦里", "成都", "food", "", 30.6448, 104.0503).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO route").WithArgs([]string{"a", "b"}, 10, "先逛武侯祠").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplacePlaces(ctx, places, route))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SaveRoute(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()

	t.Run("all places exist", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT").WithArgs([]string{"a", "b"}).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
		mock.ExpectExec("INSERT INTO route").WithArgs([]string{"a", "b"}, 3, "ok").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, repo.SaveRoute(ctx, types.Route{Sequence: []string{"a", "b"}, TotalDurationMinutes: 3, Advice: "ok"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale route is rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT").WithArgs([]string{"a", "gone"}).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectRollback()

		err := repo.SaveRoute(ctx, types.Route{Sequence: []string{"a", "gone"}})
		assert.ErrorIs(t, err, types.ErrStaleRoute)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_GetRoute(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		mock.ExpectQuery("SELECT sequence, total_duration_minutes, advice FROM route").WillReturnError(pgx.ErrNoRows)

		r, err := repo.GetRoute(ctx)
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("present", func(t *testing.T) {
		mock.ExpectQuery("SELECT sequence, total_duration_minutes, advice FROM route").
			WillReturnRows(pgxmock.NewRows([]string{"sequence", "total_duration_minutes", "advice"}).
				AddRow([]string{"a", "b"}, 10, "先逛武侯祠"))

		r, err := repo.GetRoute(ctx)
		require.NoError(t, err)
		assert.Equal(t, &types.Route{Sequence: []string{"a", "b"}, TotalDurationMinutes: 10, Advice: "先逛武侯祠"}, r)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Settings(t *testing.T) {
	repo, mock := setupRepositoryTest(t)
	ctx := context.Background()
	cols := []string{"amap_key", "amap_security_code", "llm_api_key", "llm_base_url", "llm_model"}

	t.Run("not saved yet", func(t *testing.T) {
		mock.ExpectQuery("FROM settings WHERE id = 1").WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetSettings(ctx)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("saved", func(t *testing.T) {
		mock.ExpectQuery("FROM settings WHERE id = 1").
			WillReturnRows(pgxmock.NewRows(cols).AddRow("amap", "sec", "sk", "https://api.example.com/v1", "gpt-4o-mini"))

		s, err := repo.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", s.LLMModel)
		assert.Equal(t, "sec", s.AMapSecurityCode)
	})

	t.Run("upsert", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO settings").WithArgs("amap", "", "sk", "", "gpt-3.5-turbo").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.SaveSettings(ctx, types.Settings{AMapKey: "amap", LLMAPIKey: "sk", LLMModel: "gpt-3.5-turbo"}))
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
