package domain

import "github.com/RyanDowne/hifi/internal/sim/entity"

// PhysicsEngine is the external collision/dynamics collaborator. The domain
// hands it every record with pending dirty flags once per tick; the engine
// reads the flags it consumes, clears exactly those, and claims or releases
// the record's physics handle. While a record is claimed the domain's own
// integrator leaves it alone.
type PhysicsEngine interface {
	Sync(rec *entity.Record)
}

func (d *Domain) physicsPass() {
	if d.env.Physics == nil {
		return
	}
	for _, rec := range d.records {
		if rec.DirtyFlags() != 0 {
			d.env.Physics.Sync(rec)
		}
	}
}
