package model

import "fmt"

// Platform is the kind of gaming station.
type Platform string

const (
	PlatformPC      Platform = "PC"
	PlatformConsole Platform = "Console"
)

const (
	// DefaultPCConfig is stored in bureau.config_pc when none is supplied.
	DefaultPCConfig = "Configuration standard"
	// DefaultControllers is stored in espaceconsole.nombre_manettes when none is supplied.
	DefaultControllers = 2
	MinControllers     = 1
	MaxControllers     = 8
)

// ParsePlatform accepts exactly "PC" or "Console".
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformPC, PlatformConsole:
		return Platform(s), nil
	}
	return "", fmt.Errorf("platform must be PC or Console, got %q", s)
}

// Station is a row of `stationjeu` joined with its platform payload
// (`bureau` for PCs, `espaceconsole` for consoles).  Exactly one of
// ConfigPC and NombreManettes is set.
type Station struct {
	ID             uint64   `json:"id_station"`
	Plateforme     Platform `json:"plateforme"`
	ConfigPC       *string  `json:"config_pc"`
	NombreManettes *int     `json:"nombre_manettes"`
}

// StationStatus is the resolved state of a station at a point in time.
type StationStatus string

const (
	StatusAvailable     StationStatus = "available"
	StatusReserved      StationStatus = "reserved"
	StatusActiveSession StationStatus = "active_session"
)

// StationView is a station decorated with its availability and counters,
// as returned by browse endpoints.
type StationView struct {
	Station
	Available         bool          `json:"available"`
	Status            StationStatus `json:"status"`
	TotalReservations int           `json:"total_reservations"`
	ActiveSessions    int           `json:"active_sessions"`
	Conflicts         int           `json:"reservation_conflicts"`
}
