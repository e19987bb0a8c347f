package kernel

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/stat"
)

func TestSeedGridBounds(t *testing.T) {
	tests := []struct {
		name   string
		origin mgl32.Vec3
		extent mgl32.Vec3
	}{
		{"positive extent", mgl32.Vec3{-10, 6, -4}, mgl32.Vec3{0, 12, 8}},
		{"negative extent", mgl32.Vec3{1, 2, 3}, mgl32.Vec3{-5, -1, -0.5}},
		{"zero extent", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := SeedGrid(rand.NewPCG(1, 2), 16, tt.origin, tt.extent)
			if len(grid.Texels) != 16*16*4 {
				t.Fatalf("texels = %d, want %d", len(grid.Texels), 16*16*4)
			}
			for c := range grid.Cells() {
				texel := grid.Texel(c)
				for a := range 3 {
					lo, hi := tt.origin[a], tt.origin[a]+tt.extent[a]
					if hi < lo {
						lo, hi = hi, lo
					}
					if texel[a] < lo || texel[a] > hi {
						t.Fatalf("cell %d axis %d = %v outside [%v, %v]", c, a, texel[a], lo, hi)
					}
				}
				if texel[3] != 0 {
					t.Fatalf("cell %d age = %v, want 0", c, texel[3])
				}
			}
		})
	}
}

func TestSeedGridUniformity(t *testing.T) {
	grid := SeedGrid(rand.NewPCG(7, 11), 64, mgl32.Vec3{}, mgl32.Vec3{1, 2, 4})
	for a, extent := range []float64{1, 2, 4} {
		xs := make([]float64, grid.Cells())
		for c := range xs {
			xs[c] = float64(grid.Texel(c)[a])
		}
		mean, variance := stat.Mean(xs, nil), stat.Variance(xs, nil)
		wantMean, wantVar := extent/2, extent*extent/12
		if math.Abs(mean-wantMean) > 0.05*extent {
			t.Errorf("axis %d mean = %v, want about %v", a, mean, wantMean)
		}
		if math.Abs(variance-wantVar) > 0.1*wantVar {
			t.Errorf("axis %d variance = %v, want about %v", a, variance, wantVar)
		}
	}
}

func TestSeedGridReproducible(t *testing.T) {
	a := SeedGrid(rand.NewPCG(3, 4), 8, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	b := SeedGrid(rand.NewPCG(3, 4), 8, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	for i := range a.Texels {
		if a.Texels[i] != b.Texels[i] {
			t.Fatalf("texel float %d differs: %v vs %v", i, a.Texels[i], b.Texels[i])
		}
	}
}

func TestCoordTableUnique(t *testing.T) {
	for _, size := range []int{1, 2, 7, 32} {
		coords := CoordTable(size)
		if len(coords) != size*size*2 {
			t.Fatalf("size %d: %d floats, want %d", size, len(coords), size*size*2)
		}
		seen := make(map[uint32]bool, size*size)
		for c := 0; c < len(coords); c += 2 {
			coord := mgl32.Vec2{coords[c], coords[c+1]}
			idx := CellIndex(coord, size)
			if int(idx) != c/2 {
				t.Fatalf("size %d: coord %v maps to cell %d, want %d", size, coord, idx, c/2)
			}
			if seen[idx] {
				t.Fatalf("size %d: duplicate coordinate for cell %d", size, idx)
			}
			seen[idx] = true
		}
	}
}

func TestAdvanceTexelPureDrift(t *testing.T) {
	params := &GPUSimParams{
		Drift:     [3]float32{1, 0, 0},
		DeltaTime: 1,
		EndPos:    [3]float32{16, 6, -4},
		Respawn:   1,
		GridSize:  2,
	}
	got := AdvanceTexel(params, NewCurlField(0), mgl32.Vec4{0, 0, 0, 0}, 0)
	want := mgl32.Vec4{1, 0, 0, 1}
	if got != want {
		t.Fatalf("AdvanceTexel = %v, want %v", got, want)
	}
}

func TestAdvanceTexelZeroDeltaIsIdentity(t *testing.T) {
	params := &GPUSimParams{
		Drift:         [3]float32{4, 0, 0},
		CurlScale:     1.5,
		NoiseScale:    0.15,
		EndPos:        [3]float32{0, 0, 0},
		RespawnRadius: 100,
		Respawn:       1,
	}
	in := mgl32.Vec4{0.5, 0.25, -1, 3}
	if got := AdvanceTexel(params, NewCurlField(0), in, 5); got != in {
		t.Fatalf("dt=0 changed the texel: %v -> %v", in, got)
	}
}

func TestAdvanceTexelBoundedVelocity(t *testing.T) {
	params := &GPUSimParams{
		Drift:      [3]float32{4, 0, 0},
		CurlScale:  1.5,
		NoiseScale: 0.15,
		DeltaTime:  1.0 / 15.0,
	}
	field := NewCurlField(42)
	limit := params.CurlScale + mgl32.Vec3(params.Drift).Len()
	r := rand.New(rand.NewPCG(5, 6))
	for range 500 {
		p := mgl32.Vec3{r.Float32()*40 - 20, r.Float32()*40 - 20, r.Float32()*40 - 20}
		next := AdvanceTexel(params, field, p.Vec4(0), 0)
		speed := next.Vec3().Sub(p).Len() / params.DeltaTime
		if !common.IsFinite(speed) || speed > limit*1.0001 {
			t.Fatalf("speed %v at %v exceeds %v", speed, p, limit)
		}
	}
}

func TestAdvanceTexelRespawn(t *testing.T) {
	params := &GPUSimParams{
		Drift:         [3]float32{1, 0, 0},
		DeltaTime:     0.5,
		SpawnOrigin:   [3]float32{-10, 0, 0},
		SpawnExtent:   [3]float32{0, 2, 2},
		EndPos:        [3]float32{5, 0, 0},
		RespawnRadius: 1,
		Respawn:       1,
	}
	got := AdvanceTexel(params, nil, mgl32.Vec4{4.9, 0, 0, 3}, 9)
	if got[0] != -10 || got[3] != 0 {
		t.Fatalf("particle past the endpoint was not respawned: %v", got)
	}
	if got[1] < 0 || got[1] > 2 || got[2] < 0 || got[2] > 2 {
		t.Fatalf("respawned outside the spawn box: %v", got)
	}
	again := AdvanceTexel(params, nil, mgl32.Vec4{4.9, 0, 0, 3}, 9)
	if again != got {
		t.Fatalf("respawn is not deterministic: %v vs %v", got, again)
	}

	params.Respawn = 0
	if got := AdvanceTexel(params, nil, mgl32.Vec4{4.9, 0, 0, 3}, 9); got[0] != 5.4 {
		t.Fatalf("respawn disabled but particle moved to %v", got)
	}
}

func TestShouldRespawn(t *testing.T) {
	end := mgl32.Vec3{16, 6, -4}
	drift := mgl32.Vec3{4, 0, 0}
	near := mgl32.Vec3{0, 6, -4}
	far := mgl32.Vec3{40, 6, -4}
	tests := []struct {
		name   string
		p      mgl32.Vec3
		origin mgl32.Vec3
		want   bool
	}{
		{"before endpoint", mgl32.Vec3{0, 6, -4}, near, false},
		{"inside radius", mgl32.Vec3{15.5, 6, -4}, near, true},
		{"past plane", mgl32.Vec3{17, 20, 3}, near, true},
		{"spawned past plane", mgl32.Vec3{41, 6, -4}, far, false},
		{"spawned past plane inside radius", mgl32.Vec3{16.5, 6, -4}, far, true},
		{"spawn origin on plane", mgl32.Vec3{17, 6, -4}, mgl32.Vec3{16, 0, 0}, false},
	}
	for _, tt := range tests {
		if got := ShouldRespawn(tt.p, tt.origin, drift, end, 1); got != tt.want {
			t.Errorf("%s: ShouldRespawn = %v, want %v", tt.name, got, tt.want)
		}
	}
	if ShouldRespawn(mgl32.Vec3{100, 0, 0}, near, mgl32.Vec3{}, end, 0) {
		t.Error("no drift and no radius should never respawn")
	}
}

func TestSpriteSize(t *testing.T) {
	params := &GPUSpriteParams{
		BaseSize:    300,
		MinSize:     5,
		MaxSize:     10,
		NearRadius:  2,
		ShrinkSpeed: 0.7,
	}
	if got := SpriteSize(params, 10, 100); got != 10 {
		t.Errorf("near camera, far from target: %v, want 10", got)
	}
	if got := SpriteSize(params, 1000, 100); got != 5 {
		t.Errorf("far from camera: %v, want 5", got)
	}
	atTarget := SpriteSize(params, 10, 0)
	if atTarget >= 1 {
		t.Errorf("at target: %v, want close to 0", atTarget)
	}
	mid := SpriteSize(params, 10, 1)
	if !(mid > atTarget && mid < 10) {
		t.Errorf("inside radius: %v not between %v and 10", mid, atTarget)
	}
	if got := SpriteSize(params, 0, 100); got != 10 || !common.IsFinite(got) {
		t.Errorf("camera distance 0: %v", got)
	}
}

func TestSpriteSizeZeroNearRadius(t *testing.T) {
	params := &GPUSpriteParams{BaseSize: 300, MinSize: 5, MaxSize: 10, NearRadius: 0, ShrinkSpeed: 0.7}
	for _, d := range []float32{0, 0.5, 100} {
		got := SpriteSize(params, 10, d)
		if !common.IsFinite(got) || got != params.MinSize {
			t.Fatalf("target distance %v: size %v, want %v", d, got, params.MinSize)
		}
	}
}

func TestSpriteColor(t *testing.T) {
	params := &GPUSpriteParams{Color: [3]float32{0.77, 0.2, 1.0}, GridSize: 8}
	coords := CoordTable(8)
	first := SpriteColor(params, mgl32.Vec2{coords[0], coords[1]})
	if first != (mgl32.Vec4{0.77, 0.2, 1.0, 1}) {
		t.Fatalf("zero variation changed the colour: %v", first)
	}

	params.ColorVariation = 2
	distinct := map[mgl32.Vec4]bool{}
	for c := 0; c < len(coords); c += 2 {
		col := SpriteColor(params, mgl32.Vec2{coords[c], coords[c+1]})
		for ch := range 3 {
			if col[ch] < 0 || col[ch] > 1 {
				t.Fatalf("channel %d = %v outside [0, 1]", ch, col[ch])
			}
		}
		distinct[col] = true
	}
	if len(distinct) < 32 {
		t.Fatalf("only %d distinct colours across 64 particles", len(distinct))
	}
}

func TestSpriteTexelBehindCamera(t *testing.T) {
	params := &GPUSpriteParams{BaseSize: 300, MinSize: 5, MaxSize: 10, NearRadius: 2, GridSize: 1, TargetPos: [3]float32{100, 100, 100}}
	view := common.ViewState{
		ViewProj: mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100).Mul4(
			mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})),
		Eye:    mgl32.Vec3{0, 0, 10},
		Width:  64,
		Height: 64,
	}
	if _, ok := SpriteTexel(params, mgl32.Vec4{0, 0, 20, 0}, mgl32.Vec2{0.5, 0.5}, view); ok {
		t.Fatal("particle behind the camera produced a sprite")
	}
	s, ok := SpriteTexel(params, mgl32.Vec4{0, 0, 0, 0}, mgl32.Vec2{0.5, 0.5}, view)
	if !ok {
		t.Fatal("particle in front of the camera was dropped")
	}
	if s.Size != 10 {
		t.Fatalf("size = %v, want 10", s.Size)
	}
}

func TestGPUTypeSizes(t *testing.T) {
	if got := len((&GPUSimParams{}).Marshal()); got != 80 {
		t.Errorf("GPUSimParams = %d bytes, want 80", got)
	}
	if got := len((&GPUSpriteParams{}).Marshal()); got != 64 {
		t.Errorf("GPUSpriteParams = %d bytes, want 64", got)
	}
}
