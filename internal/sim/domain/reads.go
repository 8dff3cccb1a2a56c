package domain

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/geom"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// SpatialState is one coherent spatial snapshot of an entity, taken inside
// the domain loop so no field pair can tear.
type SpatialState struct {
	ID                uuid.UUID
	Type              entity.Type
	PositionMeters    mgl32.Vec3
	DimensionsMeters  mgl32.Vec3
	Rotation          mgl32.Quat
	VelocityMeters    mgl32.Vec3
	BoundsMeters      geom.AABox
	GridCell          geom.AACube
	LastEdited        uint64
	LastSimulated     uint64
	Locked            bool
	PhysicsClaimed    bool
	NeedsSimulation   bool
}

type spatialReq struct {
	ID   uuid.UUID
	Resp chan spatialResp
}

type spatialResp struct {
	State SpatialState
	Err   error
}

// SpatialStateOf marshals a read through the domain loop and blocks for the
// reply. This is the only cross-goroutine read path; nothing outside the
// loop touches a record directly.
func (d *Domain) SpatialStateOf(ctx context.Context, id uuid.UUID) (SpatialState, error) {
	req := spatialReq{ID: id, Resp: make(chan spatialResp, 1)}
	select {
	case d.spatial <- req:
	case <-ctx.Done():
		return SpatialState{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.State, resp.Err
	case <-ctx.Done():
		return SpatialState{}, ctx.Err()
	}
}

func (d *Domain) handleSpatialReq(req spatialReq) {
	resp := spatialResp{}
	defer func() {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- resp:
		default:
		}
	}()
	rec := d.records[req.ID]
	if rec == nil {
		resp.Err = ErrUnknownEntity
		return
	}
	resp.State = SpatialState{
		ID:               req.ID,
		Type:             rec.Type(),
		PositionMeters:   rec.PositionInMeters(),
		DimensionsMeters: rec.DimensionsInMeters(),
		Rotation:         rec.Rotation(),
		VelocityMeters:   rec.VelocityInMeters(),
		BoundsMeters:     rec.AABoxInMeters(),
		GridCell:         rec.EnclosingGridCell(),
		LastEdited:       rec.LastEdited(),
		LastSimulated:    rec.LastSimulated(),
		Locked:           rec.Locked(),
		PhysicsClaimed:   rec.PhysicsHandle() != entity.NoPhysicsHandle,
		NeedsSimulation:  rec.NeedsSimulation(),
	}
}
