package protocol

import (
	"github.com/RyanDowne/hifi/internal/clock"
	"github.com/RyanDowne/hifi/internal/sim/entity"
	"github.com/RyanDowne/hifi/internal/units"
)

// ApplyParams governs how a decoded update lands on a record.
type ApplyParams struct {
	// SkewUsec maps the sender's clock into ours: local = remote + skew.
	SkewUsec int64

	// OverwriteLocalData forces the update through even when the local
	// record carries a newer edit. Bootstrap and replay use it; live edit
	// traffic does not.
	OverwriteLocalData bool

	// NowUsec stamps receipt bookkeeping; zero skips the receipt stamps.
	NowUsec uint64
}

// ApplyUpdate lands a decoded update on a record under last-writer-wins: the
// skew-adjusted remote stamp must beat the record's lastEdited, and a tie
// keeps the local value. Non-finite decoded numbers are swapped for the
// record's current values here, the last gate before the spatial index sees
// them. Reports whether the record took the update.
func ApplyUpdate(rec *entity.Record, upd *Update, params ApplyParams) bool {
	adjusted := clock.AdjustUsec(upd.LastEdited, params.SkewUsec)
	if !params.OverwriteLocalData && adjusted <= rec.LastEdited() {
		return false
	}

	sanitizeProps(rec, upd.Props)
	rec.ApplyProperties(upd.Props)

	rec.SetLastEdited(adjusted)
	rec.SetLastEditedFromRemote(adjusted, upd.LastEdited)
	if params.NowUsec != 0 {
		rec.SetLastUpdated(params.NowUsec)
		rec.MarkChangedOnServer(params.NowUsec)
	}
	return true
}

// sanitizeProps replaces NaN/Inf values in physics-adjacent fields with the
// record's current value, field by field. Cosmetic floats pass through; they
// never reach the index or the integrator.
func sanitizeProps(rec *entity.Record, p *entity.Properties) {
	m := p.Changed()
	if m.Has(entity.PropPosition) {
		p.Position = units.SanitizeVec3(p.Position, rec.Position())
	}
	if m.Has(entity.PropDimensions) {
		p.Dimensions = units.SanitizeVec3(p.Dimensions, rec.Dimensions())
	}
	if m.Has(entity.PropRotation) {
		p.Rotation = units.SanitizeQuat(p.Rotation, rec.Rotation())
	}
	if m.Has(entity.PropVelocity) {
		p.Velocity = units.SanitizeVec3(p.Velocity, rec.Velocity())
	}
	if m.Has(entity.PropGravity) {
		p.Gravity = units.SanitizeVec3(p.Gravity, rec.Gravity())
	}
	if m.Has(entity.PropAngularVelocity) {
		p.AngularVelocity = units.SanitizeVec3(p.AngularVelocity, rec.AngularVelocity())
	}
	if m.Has(entity.PropRegistrationPoint) {
		p.RegistrationPoint = units.SanitizeVec3(p.RegistrationPoint, rec.RegistrationPoint())
	}
	if m.Has(entity.PropDamping) {
		p.Damping = units.SanitizeFloat(p.Damping, rec.Damping())
	}
	if m.Has(entity.PropAngularDamping) {
		p.AngularDamping = units.SanitizeFloat(p.AngularDamping, rec.AngularDamping())
	}
	if m.Has(entity.PropDensity) {
		p.Density = units.SanitizeFloat(p.Density, rec.Density())
	}
	if m.Has(entity.PropLifetime) {
		p.Lifetime = units.SanitizeFloat(p.Lifetime, rec.Lifetime())
	}
}
