package domain

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/persistence/archive"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

type archiveNowReq struct {
	Resp chan uint64
}

// RequestArchive asks the loop to export an archive on its next iteration,
// outside the normal cadence. Returns the tick the export ran on.
func (d *Domain) RequestArchive(ctx context.Context) (uint64, error) {
	req := archiveNowReq{Resp: make(chan uint64, 1)}
	select {
	case d.archiveNow <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case tick := <-req.Resp:
		return tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (d *Domain) handleArchiveNow(req archiveNowReq) {
	d.exportArchive(d.env.Clock.NowUsec())
	if req.Resp != nil {
		select {
		case req.Resp <- d.tick.Load():
		default:
		}
	}
}

// ExportArchive captures the whole entity table as an archive document; loop
// goroutine only (the live loop calls it on its archive cadence, tools call
// it before Run).
func (d *Domain) ExportArchive(nowUsec uint64) archive.DomainV1 {
	doc := archive.DomainV1{
		Header: archive.Header{
			Version:     archive.FormatVersion,
			DomainID:    d.cfg.ID,
			WrittenUsec: nowUsec,
		},
		Entities: make([]archive.EntityV1, 0, len(d.records)),
	}
	for id, rec := range d.records {
		doc.Entities = append(doc.Entities, exportEntity(id, rec))
	}
	return doc
}

// exportArchive pushes a document at the archive sink without blocking the
// loop; a busy sink skips this cadence rather than stalling ticks.
func (d *Domain) exportArchive(nowUsec uint64) {
	if d.archiveSink == nil {
		return
	}
	doc := d.ExportArchive(nowUsec)
	select {
	case d.archiveSink <- doc:
	default:
		d.env.Log.Printf("archive sink busy, skipping export at %d", nowUsec)
	}
}

// ImportArchive replaces the entity table with the archived one. Call before
// Run (or from the loop goroutine); records resume with their archived edit
// stamps so later edits still win by timestamp.
func (d *Domain) ImportArchive(doc archive.DomainV1) error {
	if doc.Header.Version != archive.FormatVersion {
		return fmt.Errorf("archive version %d not supported", doc.Header.Version)
	}
	records := make(map[uuid.UUID]*entity.Record, len(doc.Entities))
	for i := range doc.Entities {
		id, rec, err := importEntity(&doc.Entities[i], d.env.Clock.NowUsec())
		if err != nil {
			return fmt.Errorf("archive entity %d: %w", i, err)
		}
		records[id] = rec
	}
	d.records = records
	d.cells = make(map[uuid.UUID]*CellRef, len(records))
	for id, rec := range records {
		// dirty flags from seeding stay set so the first physics pass
		// hears about every non-default record
		d.reindex(id, rec)
	}
	d.env.Log.Printf("imported %d entities from archive (written %d)", len(records), doc.Header.WrittenUsec)
	return nil
}

func exportEntity(id uuid.UUID, rec *entity.Record) archive.EntityV1 {
	p := rec.Snapshot(entity.PropertiesForType(rec.Type()))
	e := archive.EntityV1{
		ID:             id.String(),
		Type:           rec.Type().String(),
		CreatedUsec:    rec.Created(),
		LastEditedUsec: rec.LastEdited(),

		Position:          vecOut(p.Position),
		Dimensions:        vecOut(p.Dimensions),
		Rotation:          quatOut(p.Rotation),
		RegistrationPoint: vecOut(p.RegistrationPoint),

		Velocity:        vecOut(p.Velocity),
		Gravity:         vecOut(p.Gravity),
		Damping:         p.Damping,
		AngularVelocity: vecOut(p.AngularVelocity),
		AngularDamping:  p.AngularDamping,
		Density:         p.Density,
		Lifetime:        p.Lifetime,

		Visible:             p.Visible,
		IgnoreForCollisions: p.IgnoreForCollisions,
		CollisionsWillMove:  p.CollisionsWillMove,
		Locked:              p.Locked,
		Script:              p.Script,
		UserData:            p.UserData,
		GlowLevel:           rec.GlowLevel(),
		LocalRenderAlpha:    rec.LocalRenderAlpha(),
	}

	switch rec.Type() {
	case entity.TypeBox, entity.TypeSphere:
		e.Color = colorOut(p.Color)
	case entity.TypeModel:
		e.Color = colorOut(p.Color)
		e.Model = &archive.ModelV1{
			URL:                 p.ModelURL,
			AnimationURL:        p.AnimationURL,
			AnimationFPS:        p.AnimationFPS,
			AnimationFrameIndex: p.AnimationFrameIndex,
			AnimationPlaying:    p.AnimationPlaying,
			AnimationSettings:   p.AnimationSettings,
			Textures:            p.Textures,
			ShapeType:           uint8(p.ShapeType),
		}
	case entity.TypeLight:
		e.Light = &archive.LightV1{
			Spotlight:            p.IsSpotlight,
			Diffuse:              [3]uint8{p.DiffuseColor.R, p.DiffuseColor.G, p.DiffuseColor.B},
			Ambient:              [3]uint8{p.AmbientColor.R, p.AmbientColor.G, p.AmbientColor.B},
			Specular:             [3]uint8{p.SpecularColor.R, p.SpecularColor.G, p.SpecularColor.B},
			ConstantAttenuation:  p.ConstantAttenuation,
			LinearAttenuation:    p.LinearAttenuation,
			QuadraticAttenuation: p.QuadraticAttenuation,
			Exponent:             p.Exponent,
			Cutoff:               p.Cutoff,
		}
	case entity.TypeText:
		e.Text = &archive.TextV1{
			Text:            p.Text,
			LineHeight:      p.LineHeight,
			TextColor:       [3]uint8{p.TextColor.R, p.TextColor.G, p.TextColor.B},
			BackgroundColor: [3]uint8{p.BackgroundColor.R, p.BackgroundColor.G, p.BackgroundColor.B},
		}
	case entity.TypeParticleEffect:
		e.Color = colorOut(p.Color)
		e.Particle = &archive.ParticleV1{
			MaxParticles:   p.MaxParticles,
			Lifespan:       p.Lifespan,
			EmitRate:       p.EmitRate,
			EmitDirection:  vecOut(p.EmitDirection),
			EmitStrength:   p.EmitStrength,
			LocalGravity:   p.LocalGravity,
			ParticleRadius: p.ParticleRadius,
			ShapeType:      uint8(p.ShapeType),
		}
	}
	return e
}

func importEntity(e *archive.EntityV1, nowUsec uint64) (uuid.UUID, *entity.Record, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("id %q: %w", e.ID, err)
	}
	typ, err := entity.ParseType(e.Type)
	if err != nil {
		return uuid.Nil, nil, err
	}

	p := entity.NewProperties(typ)
	p.Created = e.CreatedUsec
	p.LastEdited = e.LastEditedUsec

	p.Position = vecIn(e.Position)
	p.Dimensions = vecIn(e.Dimensions)
	p.Rotation = quatIn(e.Rotation)
	p.RegistrationPoint = vecIn(e.RegistrationPoint)
	p.Velocity = vecIn(e.Velocity)
	p.Gravity = vecIn(e.Gravity)
	p.Damping = e.Damping
	p.AngularVelocity = vecIn(e.AngularVelocity)
	p.AngularDamping = e.AngularDamping
	p.Density = e.Density
	p.Lifetime = e.Lifetime
	p.Visible = e.Visible
	p.IgnoreForCollisions = e.IgnoreForCollisions
	p.CollisionsWillMove = e.CollisionsWillMove
	p.Locked = e.Locked
	p.Script = e.Script
	p.UserData = e.UserData

	if e.Color != nil {
		p.Color = entity.Color{R: e.Color[0], G: e.Color[1], B: e.Color[2]}
	}
	if m := e.Model; m != nil {
		p.ModelURL = m.URL
		p.AnimationURL = m.AnimationURL
		p.AnimationFPS = m.AnimationFPS
		p.AnimationFrameIndex = m.AnimationFrameIndex
		p.AnimationPlaying = m.AnimationPlaying
		p.AnimationSettings = m.AnimationSettings
		p.Textures = m.Textures
		p.ShapeType = entity.ShapeType(m.ShapeType)
	}
	if l := e.Light; l != nil {
		p.IsSpotlight = l.Spotlight
		p.DiffuseColor = entity.Color{R: l.Diffuse[0], G: l.Diffuse[1], B: l.Diffuse[2]}
		p.AmbientColor = entity.Color{R: l.Ambient[0], G: l.Ambient[1], B: l.Ambient[2]}
		p.SpecularColor = entity.Color{R: l.Specular[0], G: l.Specular[1], B: l.Specular[2]}
		p.ConstantAttenuation = l.ConstantAttenuation
		p.LinearAttenuation = l.LinearAttenuation
		p.QuadraticAttenuation = l.QuadraticAttenuation
		p.Exponent = l.Exponent
		p.Cutoff = l.Cutoff
	}
	if t := e.Text; t != nil {
		p.Text = t.Text
		p.LineHeight = t.LineHeight
		p.TextColor = entity.Color{R: t.TextColor[0], G: t.TextColor[1], B: t.TextColor[2]}
		p.BackgroundColor = entity.Color{R: t.BackgroundColor[0], G: t.BackgroundColor[1], B: t.BackgroundColor[2]}
	}
	if pe := e.Particle; pe != nil {
		p.MaxParticles = pe.MaxParticles
		p.Lifespan = pe.Lifespan
		p.EmitRate = pe.EmitRate
		p.EmitDirection = vecIn(pe.EmitDirection)
		p.EmitStrength = pe.EmitStrength
		p.LocalGravity = pe.LocalGravity
		p.ParticleRadius = pe.ParticleRadius
		p.ShapeType = entity.ShapeType(pe.ShapeType)
	}
	p.MarkAll()

	rec, err := entity.NewRecordFromProperties(entity.ItemID{ID: id, CreatorToken: entity.UnknownCreatorToken}, p, nowUsec)
	if err != nil {
		return uuid.Nil, nil, err
	}
	rec.SetGlowLevel(e.GlowLevel)
	rec.SetLocalRenderAlpha(e.LocalRenderAlpha)
	return id, rec, nil
}

func vecOut(v mgl32.Vec3) [3]float32 { return [3]float32{v[0], v[1], v[2]} }
func vecIn(a [3]float32) mgl32.Vec3  { return mgl32.Vec3{a[0], a[1], a[2]} }

func colorOut(c entity.Color) *[3]uint8 {
	return &[3]uint8{c.R, c.G, c.B}
}

func quatOut(q mgl32.Quat) [4]float32 {
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}

func quatIn(a [4]float32) mgl32.Quat {
	return mgl32.Quat{W: a[3], V: mgl32.Vec3{a[0], a[1], a[2]}}
}
