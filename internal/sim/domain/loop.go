package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/sim/entity"
)

func (d *Domain) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(d.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingEdits []EditEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stop:
			return nil
		case r := <-d.join:
			d.handleJoin(r)
		case id := <-d.leave:
			d.handleLeave(id)
		case req := <-d.create:
			d.handleCreate(req)
		case req := <-d.del:
			d.handleDelete(req)
		case req := <-d.spatial:
			d.handleSpatialReq(req)
		case req := <-d.archiveNow:
			d.handleArchiveNow(req)
		case env := <-d.inbox:
			pendingEdits = append(pendingEdits, env)
		case <-ticker.C:
			d.step(pendingEdits)
			pendingEdits = pendingEdits[:0]
		}
	}
}

func (d *Domain) Stop() { close(d.stop) }

// StepOnce advances the domain by a single tick with the given edits, using
// the same ordering as the live loop. Deterministic replays and tests drive
// this directly with a manual clock.
func (d *Domain) StepOnce(edits []EditEnvelope) uint64 {
	d.step(edits)
	return d.tick.Load()
}

// step is one tick: edits land first, the physics engine consumes dirty
// flags, unclaimed movers integrate, mortals expire, then deferred encode
// state drains.
func (d *Domain) step(edits []EditEnvelope) {
	t0 := time.Now()
	now := d.env.Clock.NowUsec()

	for _, env := range edits {
		d.applyEdit(env, now)
	}

	d.physicsPass()
	moved := d.simulatePass(now)
	d.expirePass(now)

	d.broadcastMotion(moved)
	d.retryDeferred()

	tick := d.tick.Add(1)
	if d.cfg.ArchiveEveryTicks > 0 && tick%d.cfg.ArchiveEveryTicks == 0 {
		d.exportArchive(now)
	}

	d.publishMetrics(float64(time.Since(t0).Microseconds()) / 1000.0)
}

// simulatePass runs the kinematic integrator over records the physics engine
// has not claimed and reports which ones moved.
func (d *Domain) simulatePass(now uint64) []uuid.UUID {
	var moved []uuid.UUID
	for id, rec := range d.records {
		if rec.PhysicsHandle() != entity.NoPhysicsHandle {
			continue
		}
		if !rec.NeedsSimulation() {
			continue
		}
		before := rec.Position()
		rotBefore := rec.Rotation()
		rec.Simulate(now)
		if rec.Position() != before || rec.Rotation() != rotBefore {
			moved = append(moved, id)
			d.reindex(id, rec)
		}
	}
	return moved
}
