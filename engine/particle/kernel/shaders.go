package kernel

import _ "embed"

// FieldUpdateSource is the WGSL compute program advancing one grid cell per invocation.
//
//go:embed assets/field_update.wgsl
var FieldUpdateSource string

// SpriteVertexSource expands every particle into an instanced screen-space quad.
//
//go:embed assets/sprite_vert.wgsl
var SpriteVertexSource string

// SpriteFragmentSource shades the soft round sprite.
//
//go:embed assets/sprite_frag.wgsl
var SpriteFragmentSource string

// GPUParticleHashSource holds the pcg/hash3 helpers shared by the particle programs.
//
//go:embed assets/hash.wgsl
var GPUParticleHashSource string
