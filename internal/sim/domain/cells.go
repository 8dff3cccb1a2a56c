package domain

import (
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/geom"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// CellRef is the grid cell a record currently occupies, attached to the
// record as its tree element. The cell is the power-of-two grid cell
// enclosing the record's maximum cube, so it stays valid under any rotation
// at the same position.
type CellRef struct {
	Cube geom.AACube
}

// reindex recomputes the record's grid cell and reseats it if the cell
// changed. Only known-ID records are ever indexed.
func (d *Domain) reindex(id uuid.UUID, rec *entity.Record) {
	if !rec.ID().IsKnown() {
		return
	}
	cell := rec.EnclosingGridCell()
	ref := d.cells[id]
	if ref != nil && ref.Cube == cell {
		return
	}
	if ref == nil {
		ref = &CellRef{}
		d.cells[id] = ref
	}
	ref.Cube = cell
	rec.SetElement(ref)
}

func (d *Domain) dropFromIndex(id uuid.UUID, rec *entity.Record) {
	delete(d.cells, id)
	if rec != nil {
		rec.SetElement(nil)
	}
}
