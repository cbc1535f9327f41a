package availability

import (
	"context"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// Report is the diagnostic answer for one station.
type Report struct {
	StationID      uint64              `json:"id_station"`
	Available      bool                `json:"available"`
	Status         model.StationStatus `json:"status"`
	Conflicts      int                 `json:"conflicts"`
	ActiveSessions int                 `json:"activeSessions"`
	Details        ReportDetails       `json:"details"`
}

type ReportDetails struct {
	ConflictReservations []Conflict      `json:"conflictReservations"`
	ActiveSessions       []ActiveSession `json:"activeSessions"`
}

// Resolver answers availability questions against a Store.
type Resolver struct {
	store Store
	now   func() time.Time
}

// NewResolver returns a Resolver.  A nil clock uses time.Now.
func NewResolver(store Store, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, now: now}
}

// Now returns the resolver's clock reading in UTC.
func (r *Resolver) Now() time.Time { return r.now().UTC() }

// status applies the precedence running session > reservation > free.
func status(active, conflicts int) model.StationStatus {
	switch {
	case active > 0:
		return model.StatusActiveSession
	case conflicts > 0:
		return model.StatusReserved
	default:
		return model.StatusAvailable
	}
}

// StationStatus reports the station's state right now.
func (r *Resolver) StationStatus(ctx context.Context, id uint64) (model.StationStatus, error) {
	rep, err := r.check(ctx, id, NowWindow(r.Now()))
	if err != nil {
		return "", err
	}
	return rep.Status, nil
}

// StationStatusAt reports the station's state for the slot holding t.
func (r *Resolver) StationStatusAt(ctx context.Context, id uint64, t time.Time) (model.StationStatus, error) {
	rep, err := r.check(ctx, id, SlotWindow(t))
	if err != nil {
		return "", err
	}
	return rep.Status, nil
}

// Check returns the diagnostic report for a station.  A nil at asks about
// now; otherwise the slot holding *at is checked.
func (r *Resolver) Check(ctx context.Context, id uint64, at *time.Time) (Report, error) {
	w := NowWindow(r.Now())
	if at != nil {
		w = SlotWindow(*at)
	}
	return r.check(ctx, id, w)
}

func (r *Resolver) check(ctx context.Context, id uint64, w Window) (Report, error) {
	ok, err := r.store.StationExists(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, ErrStationNotFound
	}
	active, err := r.store.ActiveSessions(ctx, id)
	if err != nil {
		return Report{}, err
	}
	conflicts, err := r.store.Conflicts(ctx, id, w)
	if err != nil {
		return Report{}, err
	}
	if active == nil {
		active = []ActiveSession{}
	}
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	st := status(len(active), len(conflicts))
	return Report{
		StationID:      id,
		Available:      st == model.StatusAvailable,
		Status:         st,
		Conflicts:      len(conflicts),
		ActiveSessions: len(active),
		Details: ReportDetails{
			ConflictReservations: conflicts,
			ActiveSessions:       active,
		},
	}, nil
}

// Snapshot returns every station with its state right now.
func (r *Resolver) Snapshot(ctx context.Context) ([]model.StationView, error) {
	return r.snapshot(ctx, NowWindow(r.Now()))
}

// SnapshotAt returns every station with its state for the slot holding t.
func (r *Resolver) SnapshotAt(ctx context.Context, t time.Time) ([]model.StationView, error) {
	return r.snapshot(ctx, SlotWindow(t))
}

// View returns one station with its state right now.
func (r *Resolver) View(ctx context.Context, id uint64) (model.StationView, error) {
	v, ok, err := r.store.Station(ctx, id, NowWindow(r.Now()))
	if err != nil {
		return model.StationView{}, err
	}
	if !ok {
		return model.StationView{}, ErrStationNotFound
	}
	return resolve(v), nil
}

func resolve(v model.StationView) model.StationView {
	v.Status = status(v.ActiveSessions, v.Conflicts)
	v.Available = v.Status == model.StatusAvailable
	return v
}

func (r *Resolver) snapshot(ctx context.Context, w Window) ([]model.StationView, error) {
	views, err := r.store.Stations(ctx, w)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i] = resolve(views[i])
	}
	return views, nil
}

// AvailableAt lists the stations free in the slot holding *at.  Without a
// time nothing is filtered: every station is listed with its current state.
func (r *Resolver) AvailableAt(ctx context.Context, at *time.Time) ([]model.StationView, error) {
	if at == nil {
		return r.Snapshot(ctx)
	}
	views, err := r.SnapshotAt(ctx, *at)
	if err != nil {
		return nil, err
	}
	out := make([]model.StationView, 0, len(views))
	for _, v := range views {
		if v.Available {
			out = append(out, v)
		}
	}
	return out, nil
}
