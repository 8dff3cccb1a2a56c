// Package entity holds the per-object data model of the domain: the mutable
// record every collaborator (codec, physics, spatial index) works against,
// its closed set of type variants, dirty-flag change tracking, kinematic
// extrapolation and bounding-volume queries.
package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Type is the closed enumeration of entity variants. Values are part of the
// wire format and never change meaning.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeModel
	TypeBox
	TypeSphere
	TypeLight
	TypeText
	TypeParticleEffect

	typeCount
)

var typeNames = map[Type]string{
	TypeUnknown:        "Unknown",
	TypeModel:          "Model",
	TypeBox:            "Box",
	TypeSphere:         "Sphere",
	TypeLight:          "Light",
	TypeText:           "Text",
	TypeParticleEffect: "ParticleEffect",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

func (t Type) Valid() bool { return t > TypeUnknown && t < typeCount }

// ParseType maps a type name back to its enum value; archives store names.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name && t != TypeUnknown {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown entity type %q", name)
}

// ShapeType is the collision shape the physics engine should prefer for an
// entity; the actual physical shape may differ.
type ShapeType uint8

const (
	ShapeTypeNone ShapeType = iota
	ShapeTypeBox
	ShapeTypeSphere
)

func (s ShapeType) String() string {
	switch s {
	case ShapeTypeBox:
		return "Box"
	case ShapeTypeSphere:
		return "Sphere"
	default:
		return "None"
	}
}

// ShapeInfo describes an entity's collision geometry for the physics engine.
type ShapeInfo struct {
	Type        ShapeType
	HalfExtents mgl32.Vec3 // box half-dimensions, meters
	Radius      float32    // sphere radius, meters
}

// PhysicsHandle is an opaque token naming this entity's representation inside
// the physics engine, e.g. an index into an engine-owned table. The engine
// mints and clears handles; the record only stores them. Zero means the
// engine has not claimed the entity.
type PhysicsHandle uint64

const NoPhysicsHandle PhysicsHandle = 0

// TreeElement is the spatial-index cell currently holding an entity. The
// record keeps it as an opaque non-owning back reference for the index's
// bookkeeping and never calls into it.
type TreeElement interface{}
