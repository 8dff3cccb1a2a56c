// Package archive persists a domain's whole entity table as one
// zstd-compressed JSON document. Documents are validated against the
// embedded schema before any record is instantiated from them, so a
// corrupted or foreign file fails loudly instead of seeding a broken table.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const FormatVersion = 1

//go:embed entities_v1.schema.json
var schemaSrc string

var schema = jsonschema.MustCompileString("entities_v1.schema.json", schemaSrc)

type Header struct {
	Version     int    `json:"version"`
	DomainID    string `json:"domain_id,omitempty"`
	WrittenUsec uint64 `json:"written_usec"`
}

// DomainV1 is the archive document: the full entity table at one instant.
type DomainV1 struct {
	Header   Header     `json:"header"`
	Entities []EntityV1 `json:"entities"`
}

// EntityV1 is one archived entity. Spatial values are in domain units, the
// same frame the records store; rotation is x, y, z, w.
type EntityV1 struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	CreatedUsec    uint64 `json:"created_usec"`
	LastEditedUsec uint64 `json:"last_edited_usec"`

	Position          [3]float32 `json:"position"`
	Dimensions        [3]float32 `json:"dimensions"`
	Rotation          [4]float32 `json:"rotation"`
	RegistrationPoint [3]float32 `json:"registration_point"`

	Velocity        [3]float32 `json:"velocity"`
	Gravity         [3]float32 `json:"gravity"`
	Damping         float32    `json:"damping"`
	AngularVelocity [3]float32 `json:"angular_velocity"`
	AngularDamping  float32    `json:"angular_damping"`
	Density         float32    `json:"density"`
	Lifetime        float32    `json:"lifetime"`

	Visible             bool    `json:"visible"`
	IgnoreForCollisions bool    `json:"ignore_for_collisions,omitempty"`
	CollisionsWillMove  bool    `json:"collisions_will_move,omitempty"`
	Locked              bool    `json:"locked,omitempty"`
	Script              string  `json:"script,omitempty"`
	UserData            string  `json:"user_data,omitempty"`
	GlowLevel           float32 `json:"glow_level,omitempty"`
	LocalRenderAlpha    float32 `json:"local_render_alpha,omitempty"`

	Color    *[3]uint8   `json:"color,omitempty"`
	Model    *ModelV1    `json:"model,omitempty"`
	Light    *LightV1    `json:"light,omitempty"`
	Text     *TextV1     `json:"text,omitempty"`
	Particle *ParticleV1 `json:"particle,omitempty"`
}

type ModelV1 struct {
	URL                 string  `json:"url,omitempty"`
	AnimationURL        string  `json:"animation_url,omitempty"`
	AnimationFPS        float32 `json:"animation_fps,omitempty"`
	AnimationFrameIndex float32 `json:"animation_frame_index,omitempty"`
	AnimationPlaying    bool    `json:"animation_playing,omitempty"`
	AnimationSettings   string  `json:"animation_settings,omitempty"`
	Textures            string  `json:"textures,omitempty"`
	ShapeType           uint8   `json:"shape_type,omitempty"`
}

type LightV1 struct {
	Spotlight            bool     `json:"spotlight,omitempty"`
	Diffuse              [3]uint8 `json:"diffuse"`
	Ambient              [3]uint8 `json:"ambient"`
	Specular             [3]uint8 `json:"specular"`
	ConstantAttenuation  float32  `json:"constant_attenuation,omitempty"`
	LinearAttenuation    float32  `json:"linear_attenuation,omitempty"`
	QuadraticAttenuation float32  `json:"quadratic_attenuation,omitempty"`
	Exponent             float32  `json:"exponent,omitempty"`
	Cutoff               float32  `json:"cutoff,omitempty"`
}

type TextV1 struct {
	Text            string   `json:"text,omitempty"`
	LineHeight      float32  `json:"line_height,omitempty"`
	TextColor       [3]uint8 `json:"text_color"`
	BackgroundColor [3]uint8 `json:"background_color"`
}

type ParticleV1 struct {
	MaxParticles   uint32     `json:"max_particles,omitempty"`
	Lifespan       float32    `json:"lifespan,omitempty"`
	EmitRate       float32    `json:"emit_rate,omitempty"`
	EmitDirection  [3]float32 `json:"emit_direction"`
	EmitStrength   float32    `json:"emit_strength,omitempty"`
	LocalGravity   float32    `json:"local_gravity,omitempty"`
	ParticleRadius float32    `json:"particle_radius,omitempty"`
	ShapeType      uint8      `json:"shape_type,omitempty"`
}

func Write(path string, doc DomainV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := json.NewEncoder(bw).Encode(&doc); err != nil {
		enc.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func Read(path string) (DomainV1, error) {
	var doc DomainV1
	f, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return doc, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(bufio.NewReaderSize(dec, 256*1024))
	if err != nil {
		return doc, fmt.Errorf("read archive: %w", err)
	}
	if err := Validate(raw); err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode archive: %w", err)
	}
	return doc, nil
}

// Validate checks a raw archive document against the entities.v1 schema.
func Validate(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("archive is not JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("archive rejected by schema: %w", err)
	}
	return nil
}
