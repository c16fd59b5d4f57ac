package roomrelease

// Policy selects which signals count as occupancy evidence.
// Presence is always used.
type Policy struct {
	UseActiveCall     bool
	UseSoundLevel     bool
	UsePresentation   bool
	UseUltrasound     bool
	RequireUltrasound bool // glass-walled rooms: presence needs ultrasound confirmation
	UseInteraction    bool
}

// Metrics is the latest known reading of every room signal
type Metrics struct {
	Presence      bool
	PeopleCount   int
	Ultrasound    bool
	InCall        bool
	SoundExceeded bool
	Sharing       bool
}

// IsOccupied combines the room signals into a single verdict under the given policy
func IsOccupied(m Metrics, p Policy) bool {
	occupied := m.Presence ||
		(p.UseActiveCall && m.InCall) ||
		(p.UseSoundLevel && m.SoundExceeded) ||
		(p.UsePresentation && m.Sharing) ||
		(p.UseUltrasound && m.Ultrasound)

	if p.RequireUltrasound && m.Presence {
		occupied = m.Presence && m.Ultrasound
	}

	return occupied
}
