package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

type fakeSession struct {
	id    uint64
	debut time.Time
	fin   *time.Time
}

type fakeReservation struct {
	id      uint64
	station uint64
	date    time.Time
	session *fakeSession
}

// memStore evaluates the same predicates as the SQL store over in-memory rows.
type memStore struct {
	stations     []uint64
	reservations []*fakeReservation
	err          error
}

func (m *memStore) StationExists(_ context.Context, id uint64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, s := range m.stations {
		if s == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ActiveSessions(_ context.Context, station uint64) ([]ActiveSession, error) {
	var out []ActiveSession
	for _, r := range m.reservations {
		if r.station == station && r.session != nil && r.session.fin == nil {
			out = append(out, ActiveSession{SessionID: r.session.id, ReservationID: r.id, Debut: r.session.debut})
		}
	}
	return out, nil
}

func (m *memStore) Conflicts(_ context.Context, station uint64, w Window) ([]Conflict, error) {
	var out []Conflict
	for _, r := range m.reservations {
		if r.station != station || r.date.Before(w.From) || (w.To != nil && !r.date.Before(*w.To)) {
			continue
		}
		if r.session != nil && r.session.fin != nil {
			continue
		}
		out = append(out, Conflict{ReservationID: r.id, Date: r.date, HasSession: r.session != nil})
	}
	return out, nil
}

func (m *memStore) Stations(ctx context.Context, w Window) ([]model.StationView, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.StationView
	for _, id := range m.stations {
		active, _ := m.ActiveSessions(ctx, id)
		conflicts, _ := m.Conflicts(ctx, id, w)
		total := 0
		for _, r := range m.reservations {
			if r.station == id {
				total++
			}
		}
		out = append(out, model.StationView{
			Station:           model.Station{ID: id, Plateforme: model.PlatformPC},
			TotalReservations: total,
			ActiveSessions:    len(active),
			Conflicts:         len(conflicts),
		})
	}
	return out, nil
}

func (m *memStore) Station(ctx context.Context, id uint64, w Window) (model.StationView, bool, error) {
	views, err := m.Stations(ctx, w)
	if err != nil {
		return model.StationView{}, false, err
	}
	for _, v := range views {
		if v.ID == id {
			return v, true, nil
		}
	}
	return model.StationView{}, false, nil
}

var t0 = time.Date(2026, 5, 4, 14, 20, 0, 0, time.UTC)

func fixedClock(t *time.Time) func() time.Time { return func() time.Time { return *t } }

func TestEmptyStationIsAlwaysAvailable(t *testing.T) {
	now := t0
	r := NewResolver(&memStore{stations: []uint64{1}}, fixedClock(&now))
	ctx := context.Background()

	st, err := r.StationStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, st)

	for _, at := range []time.Time{t0.Add(-48 * time.Hour), t0, t0.Add(5 * time.Hour)} {
		st, err := r.StationStatusAt(ctx, 1, at)
		require.NoError(t, err)
		assert.Equal(t, model.StatusAvailable, st, at)
	}
}

func TestRunningSessionBlocksEveryQuery(t *testing.T) {
	now := t0
	store := &memStore{stations: []uint64{1}, reservations: []*fakeReservation{{
		id: 10, station: 1, date: t0.Add(-30 * 24 * time.Hour),
		session: &fakeSession{id: 5, debut: t0.Add(-time.Hour)},
	}}}
	r := NewResolver(store, fixedClock(&now))
	ctx := context.Background()

	st, err := r.StationStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActiveSession, st)

	st, err = r.StationStatusAt(ctx, 1, t0.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.StatusActiveSession, st)
}

func TestResolvedPastReservationDoesNotBlock(t *testing.T) {
	now := t0
	fin := t0.Add(-2 * time.Hour)
	store := &memStore{stations: []uint64{1}, reservations: []*fakeReservation{{
		id: 10, station: 1, date: t0.Add(-4 * time.Hour),
		session: &fakeSession{id: 5, debut: t0.Add(-4 * time.Hour), fin: &fin},
	}}}
	r := NewResolver(store, fixedClock(&now))

	st, err := r.StationStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, st)
}

func TestFutureReservationBlocksNowAndItsSlotOnly(t *testing.T) {
	now := t0
	at := t0.Add(2 * time.Hour)
	store := &memStore{stations: []uint64{1}, reservations: []*fakeReservation{{id: 10, station: 1, date: at}}}
	r := NewResolver(store, fixedClock(&now))
	ctx := context.Background()

	st, err := r.StationStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, st)

	st, err = r.StationStatusAt(ctx, 1, model.SlotStart(at).Add(59*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, st)

	st, err = r.StationStatusAt(ctx, 1, model.SlotStart(at).Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, st)

	st, err = r.StationStatusAt(ctx, 1, model.SlotStart(at).Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, st)
}

func TestReservationEarlierInCurrentSlotBlocksNow(t *testing.T) {
	now := t0
	store := &memStore{stations: []uint64{1}, reservations: []*fakeReservation{{id: 10, station: 1, date: model.SlotStart(t0)}}}
	r := NewResolver(store, fixedClock(&now))

	st, err := r.StationStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, st)
}

func TestSessionLifecycleScenario(t *testing.T) {
	now := t0
	res := &fakeReservation{id: 10, station: 1, date: t0.Add(2 * time.Hour)}
	store := &memStore{stations: []uint64{1}, reservations: []*fakeReservation{res}}
	r := NewResolver(store, fixedClock(&now))
	ctx := context.Background()

	rep, err := r.Check(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, rep.Available)
	assert.Equal(t, model.StatusReserved, rep.Status)

	res.session = &fakeSession{id: 1, debut: now}
	rep, err = r.Check(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, rep.Available)
	assert.Equal(t, model.StatusActiveSession, rep.Status)
	assert.Equal(t, 1, rep.ActiveSessions)
	assert.Equal(t, 1, rep.Conflicts)
	assert.True(t, rep.Details.ConflictReservations[0].HasSession)

	fin := now.Add(30 * time.Minute)
	res.session.fin = &fin
	rep, err = r.Check(ctx, 1, nil)
	require.NoError(t, err)
	assert.True(t, rep.Available)

	now = t0.Add(3 * time.Hour)
	rep, err = r.Check(ctx, 1, nil)
	require.NoError(t, err)
	assert.True(t, rep.Available)
}

func TestCheckUnknownStation(t *testing.T) {
	r := NewResolver(&memStore{stations: []uint64{1}}, nil)
	_, err := r.Check(context.Background(), 99, nil)
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestCheckReportsEmptyDetailSlices(t *testing.T) {
	r := NewResolver(&memStore{stations: []uint64{1}}, nil)
	rep, err := r.Check(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.NotNil(t, rep.Details.ConflictReservations)
	assert.NotNil(t, rep.Details.ActiveSessions)
}

func TestSnapshotAndAvailableAt(t *testing.T) {
	now := t0
	at := t0.Add(5 * time.Hour)
	store := &memStore{
		stations: []uint64{1, 2, 3},
		reservations: []*fakeReservation{
			{id: 10, station: 1, date: at},
			{id: 11, station: 2, date: t0.Add(-2 * time.Hour), session: &fakeSession{id: 7, debut: t0.Add(-time.Hour)}},
		},
	}
	r := NewResolver(store, fixedClock(&now))
	ctx := context.Background()

	views, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, model.StatusReserved, views[0].Status)
	assert.Equal(t, model.StatusActiveSession, views[1].Status)
	assert.Equal(t, model.StatusAvailable, views[2].Status)
	assert.True(t, views[2].Available)
	assert.Equal(t, 1, views[0].TotalReservations)

	free, err := r.AvailableAt(ctx, &at)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, uint64(3), free[0].ID)

	later := at.Add(time.Hour)
	free, err = r.AvailableAt(ctx, &later)
	require.NoError(t, err)
	assert.Len(t, free, 2)

	all, err := r.AvailableAt(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestView(t *testing.T) {
	now := t0
	store := &memStore{
		stations:     []uint64{1, 2},
		reservations: []*fakeReservation{{id: 10, station: 2, date: t0.Add(3 * time.Hour)}},
	}
	r := NewResolver(store, fixedClock(&now))
	ctx := context.Background()

	v, err := r.View(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.ID)
	assert.Equal(t, model.StatusReserved, v.Status)
	assert.False(t, v.Available)
	assert.Equal(t, 1, v.Conflicts)

	v, err = r.View(ctx, 1)
	require.NoError(t, err)
	assert.True(t, v.Available)

	_, err = r.View(ctx, 99)
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	r := NewResolver(&memStore{err: boom}, nil)
	_, err := r.StationStatus(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	_, err = r.Snapshot(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = r.View(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestWindows(t *testing.T) {
	w := NowWindow(t0)
	assert.Equal(t, model.SlotStart(t0), w.From)
	assert.Nil(t, w.To)

	w = SlotWindow(t0)
	require.NotNil(t, w.To)
	assert.Equal(t, time.Hour, w.To.Sub(w.From))
}
