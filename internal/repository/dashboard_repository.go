package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// PlatformStats counts stations and reservations per platform.
type PlatformStats struct {
	Plateforme        model.Platform `json:"plateforme"`
	TotalStations     int            `json:"total_stations"`
	TotalReservations int            `json:"total_reservations"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalClients      int             `json:"totalClients"`
	TotalStations     int             `json:"totalStations"`
	TotalReservations int             `json:"totalReservations"`
	ActiveSessions    int             `json:"activeSessions"`
	TodayReservations int             `json:"todayReservations"`
	TodaySessions     int             `json:"todaySessions"`
	StationStats      []PlatformStats `json:"stationStats"`
	RecentSessions    []model.Session `json:"recentSessions"`
}

// DashboardRepo aggregates counters across tables.
type DashboardRepo struct {
	db       *sql.DB
	sessions *SessionRepo
}

func NewDashboardRepo(db *sql.DB) *DashboardRepo {
	return &DashboardRepo{db: db, sessions: NewSessionRepo(db)}
}

// Stats computes the overview.  "Today" is the UTC day holding now.
func (r *DashboardRepo) Stats(ctx context.Context, now time.Time) (DashboardStats, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var st DashboardStats
	counters := []struct {
		dst  *int
		q    string
		args []any
	}{
		{&st.TotalClients, `SELECT COUNT(*) FROM client`, nil},
		{&st.TotalStations, `SELECT COUNT(*) FROM stationjeu`, nil},
		{&st.TotalReservations, `SELECT COUNT(*) FROM reservation`, nil},
		{&st.ActiveSessions, `SELECT COUNT(*) FROM sessiondejeu WHERE fin_session IS NULL`, nil},
		{&st.TodayReservations, `SELECT COUNT(*) FROM reservation WHERE date_reservation >= ? AND date_reservation < ?`, []any{dayStart, dayEnd}},
		{&st.TodaySessions, `SELECT COUNT(*) FROM sessiondejeu WHERE debut_session >= ? AND debut_session < ?`, []any{dayStart, dayEnd}},
	}
	for _, c := range counters {
		if err := r.db.QueryRowContext(ctx, c.q, c.args...).Scan(c.dst); err != nil {
			return st, err
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT s.plateforme, COUNT(DISTINCT s.id_station), COUNT(r.id_reservation)
		FROM stationjeu s
		LEFT JOIN reservation r ON r.id_station = s.id_station
		GROUP BY s.plateforme
		ORDER BY s.plateforme`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	st.StationStats = []PlatformStats{}
	for rows.Next() {
		var p PlatformStats
		if err := rows.Scan(&p.Plateforme, &p.TotalStations, &p.TotalReservations); err != nil {
			return st, err
		}
		st.StationStats = append(st.StationStats, p)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	st.RecentSessions, err = r.sessions.Recent(ctx, 5)
	return st, err
}
