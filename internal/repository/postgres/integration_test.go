//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/davidtorcivia/stifle-sub001/internal/model"
	repo "github.com/davidtorcivia/stifle-sub001/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "stifle_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/stifle_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestEventRepository_InsertIfAbsent_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	er := repo.NewEventRepository(conn)
	userID := uuid.New()
	event := model.Event{
		ID:        uuid.New(),
		UserID:    userID,
		DeviceID:  "device-a",
		Type:      model.EventTypeLock,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Source:    model.SourceAutomatic,
	}

	serverID, inserted, err := er.InsertIfAbsent(ctx, event)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotZero(t, serverID)

	// Resubmitting the same client id must return the same server row.
	again, inserted, err := er.InsertIfAbsent(ctx, event)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, serverID, again)

	// The same client id under a different user is a distinct event.
	other := event
	other.UserID = uuid.New()
	otherID, inserted, err := er.InsertIfAbsent(ctx, other)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotEqual(t, serverID, otherID)
}

func TestEventRepository_Queries(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	er := repo.NewEventRepository(conn)
	userID := uuid.New()
	base := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

	seed := []model.Event{
		{ID: uuid.New(), UserID: userID, DeviceID: "device-a", Type: model.EventTypeLock, Timestamp: base, Source: model.SourceAutomatic},
		{ID: uuid.New(), UserID: userID, DeviceID: "device-a", Type: model.EventTypeUnlock, Timestamp: base.Add(45 * time.Minute), Source: model.SourceAutomatic},
		{ID: uuid.New(), UserID: userID, DeviceID: "device-b", Type: model.EventTypeLock, Timestamp: base.Add(2 * time.Hour), Source: model.SourceAutomatic},
	}
	checkpoint := time.Now().UTC().Add(-time.Second)
	for _, e := range seed {
		_, _, err := er.InsertIfAbsent(ctx, e)
		require.NoError(t, err)
	}

	t.Run("list_range", func(t *testing.T) {
		events, err := er.ListRange(ctx, userID, base, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, seed[0].ID, events[0].ID)
		require.Equal(t, seed[1].ID, events[1].ID)
	})

	t.Run("list_received_after_excludes_device", func(t *testing.T) {
		events, err := er.ListReceivedAfter(ctx, userID, checkpoint, "device-a")
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, seed[2].ID, events[0].ID)
	})

	t.Run("latest", func(t *testing.T) {
		event, err := er.Latest(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, seed[2].ID, event.ID)
	})

	t.Run("latest_before", func(t *testing.T) {
		event, err := er.LatestBefore(ctx, userID, base.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, seed[1].ID, event.ID)

		_, err = er.LatestBefore(ctx, userID, base)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("latest_unknown_user", func(t *testing.T) {
		_, err := er.Latest(ctx, uuid.New())
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestEventRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	er := repo.NewEventRepository(conn)
	userID := uuid.New()
	old := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	for _, ts := range []time.Time{old, recent} {
		_, _, err := er.InsertIfAbsent(ctx, model.Event{
			ID: uuid.New(), UserID: userID, DeviceID: "device-a",
			Type: model.EventTypeLock, Timestamp: ts, Source: model.SourceAutomatic,
		})
		require.NoError(t, err)
	}

	deleted, err := er.DeleteOlderThan(ctx, recent)
	require.NoError(t, err)
	require.GreaterOrEqual(t, deleted, int64(1))

	event, err := er.Latest(ctx, userID)
	require.NoError(t, err)
	require.True(t, recent.Equal(event.Timestamp))
}

func TestScoreRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sr := repo.NewScoreRepository(conn)
	userID := uuid.New()
	weekStart := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	first := model.WeeklyScore{
		UserID:               userID,
		WeekStart:            weekStart,
		TotalPoints:          39.38,
		StreakCount:          1,
		LongestStreakSeconds: 2700,
		CalculatedAt:         time.Now().UTC(),
	}
	saved, err := sr.Upsert(ctx, first)
	require.NoError(t, err)
	require.InDelta(t, first.TotalPoints, saved.TotalPoints, 0.001)

	// A second upsert for the same week overwrites the row.
	second := first
	second.TotalPoints = 140
	second.StreakCount = 2
	saved, err = sr.Upsert(ctx, second)
	require.NoError(t, err)
	require.InDelta(t, 140, saved.TotalPoints, 0.001)
	require.Equal(t, 2, saved.StreakCount)

	got, err := sr.GetByWeek(ctx, userID, weekStart)
	require.NoError(t, err)
	require.InDelta(t, 140, got.TotalPoints, 0.001)

	_, err = sr.GetByWeek(ctx, userID, weekStart.AddDate(0, 0, 7))
	require.ErrorIs(t, err, model.ErrNotFound)
}
