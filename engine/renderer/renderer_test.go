package renderer

import (
	"errors"
	"image/color"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

type offsetUniform struct {
	offset float32
}

func (u *offsetUniform) Marshal() []byte {
	return common.StructToBytes(u)
}

func offsetKernel(u common.Uniform, src []float32, size, index int) mgl32.Vec4 {
	o := index * common.TexelChannels
	d := u.(*offsetUniform).offset
	return mgl32.Vec4{src[o] + d, src[o+1] + d, src[o+2] + d, src[o+3] + 1}
}

func centreSpriteKernel(_ common.Uniform, texel mgl32.Vec4, _ mgl32.Vec2, view common.ViewState) (common.Sprite, bool) {
	return common.Sprite{
		Position: mgl32.Vec2{float32(view.Width) / 2, float32(view.Height) / 2},
		Depth:    0.5,
		Size:     texel[3],
		Color:    mgl32.Vec4{1, 0, 0, 1},
	}, true
}

func newSoftwareRenderer(t *testing.T, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, NewHeadlessSurface(64, 48), options...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func TestCreateGridTargetLimits(t *testing.T) {
	r := newSoftwareRenderer(t, WithMaxGridSize(16))
	if r.MaxGridSize() != 16 {
		t.Fatalf("MaxGridSize = %d, want 16", r.MaxGridSize())
	}
	if _, err := r.CreateGridTarget("zero", 0); !errors.Is(err, ErrInvalidGridSize) {
		t.Errorf("size 0: err = %v, want ErrInvalidGridSize", err)
	}
	if _, err := r.CreateGridTarget("huge", 17); !errors.Is(err, ErrGridTooLarge) {
		t.Errorf("size 17: err = %v, want ErrGridTooLarge", err)
	}
	g, err := r.CreateGridTarget("ok", 16)
	if err != nil {
		t.Fatalf("size 16: %v", err)
	}
	if g.Size() != 16 || g.Label() != "ok" {
		t.Errorf("grid = %s/%d", g.Label(), g.Size())
	}
}

func TestWriteGridTargetRejectsMismatchedSize(t *testing.T) {
	r := newSoftwareRenderer(t)
	g, err := r.CreateGridTarget("g", 4)
	if err != nil {
		t.Fatal(err)
	}
	data := common.GridStagingData{Size: 3, Texels: make([]float32, 3*3*common.TexelChannels)}
	if err := r.WriteGridTarget(g, data); err == nil {
		t.Fatal("staging data of size 3 accepted for a size 4 grid")
	}
}

func TestDispatchGridRunsKernelOnEveryCell(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		r := newSoftwareRenderer(t, WithWorkers(workers))
		if err := r.RegisterPipelines(pipeline.NewPipeline("offset", pipeline.PipelineTypeCompute, pipeline.WithGridKernel(offsetKernel))); err != nil {
			t.Fatalf("RegisterPipelines: %v", err)
		}

		const size = 7
		src, _ := r.CreateGridTarget("src", size)
		dst, _ := r.CreateGridTarget("dst", size)
		data := common.GridStagingData{Size: size, Texels: make([]float32, size*size*common.TexelChannels)}
		for i := range data.Texels {
			data.Texels[i] = float32(i)
		}
		if err := r.WriteGridTarget(src, data); err != nil {
			t.Fatal(err)
		}

		if err := r.DispatchGrid("offset", GridPass{Uniforms: &offsetUniform{offset: 2}, Source: src, Target: dst}); err != nil {
			t.Fatalf("workers=%d: DispatchGrid: %v", workers, err)
		}
		out, err := r.ReadGridTarget(dst)
		if err != nil {
			t.Fatal(err)
		}
		for cell := range size * size {
			want := data.Texel(cell).Add(mgl32.Vec4{2, 2, 2, 1})
			if got := out.Texel(cell); got != want {
				t.Fatalf("workers=%d: cell %d = %v, want %v", workers, cell, got, want)
			}
		}

		before, _ := r.ReadGridTarget(src)
		for i := range before.Texels {
			if before.Texels[i] != data.Texels[i] {
				t.Fatalf("workers=%d: source grid modified at %d", workers, i)
			}
		}
	}
}

func TestDispatchGridErrors(t *testing.T) {
	r := newSoftwareRenderer(t)
	if err := r.RegisterPipelines(pipeline.NewPipeline("offset", pipeline.PipelineTypeCompute, pipeline.WithGridKernel(offsetKernel))); err != nil {
		t.Fatal(err)
	}
	a, _ := r.CreateGridTarget("a", 4)
	b, _ := r.CreateGridTarget("b", 4)
	c, _ := r.CreateGridTarget("c", 5)

	if err := r.DispatchGrid("missing", GridPass{Source: a, Target: b}); !errors.Is(err, ErrUnknownPipeline) {
		t.Errorf("unknown key: err = %v", err)
	}
	if err := r.DispatchGrid("offset", GridPass{Uniforms: &offsetUniform{}, Source: a, Target: a}); !errors.Is(err, ErrGridAliasing) {
		t.Errorf("aliasing: err = %v", err)
	}
	if err := r.DispatchGrid("offset", GridPass{Uniforms: &offsetUniform{}, Source: a, Target: c}); err == nil {
		t.Error("mismatched grid sizes accepted")
	}
	r.ReleaseGridTarget(b)
	if err := r.DispatchGrid("offset", GridPass{Uniforms: &offsetUniform{}, Source: a, Target: b}); !errors.Is(err, ErrReleased) {
		t.Errorf("released target: err = %v", err)
	}
}

func TestRegisterPipelineWithoutKernelFails(t *testing.T) {
	r := newSoftwareRenderer(t)
	if err := r.RegisterPipelines(pipeline.NewPipeline("bare", pipeline.PipelineTypeRender)); err == nil {
		t.Fatal("render pipeline without sprite kernel accepted by the software backend")
	}
	if r.Pipeline("bare") != nil {
		t.Fatal("failed pipeline was cached")
	}
}

func TestDrawSpritesComposesFrame(t *testing.T) {
	var presented *Frame
	r := newSoftwareRenderer(t,
		WithClearColor(color.RGBA{A: 255}),
		WithPresenter(func(f Frame) {
			presented = &f
		}),
	)
	if err := r.RegisterPipelines(pipeline.NewPipeline("dot", pipeline.PipelineTypeRender, pipeline.WithSpriteKernel(centreSpriteKernel))); err != nil {
		t.Fatal(err)
	}
	g, _ := r.CreateGridTarget("g", 1)
	if err := r.WriteGridTarget(g, common.GridStagingData{Size: 1, Texels: []float32{0, 0, 0, 20}}); err != nil {
		t.Fatal(err)
	}

	batch := SpriteBatch{Source: g, Coords: []float32{0.5, 0.5}, Count: 1}
	if err := r.DrawSprites("dot", batch); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("draw outside frame: err = %v, want ErrNoFrame", err)
	}

	view := common.ViewState{
		ViewProj: mgl32.Perspective(mgl32.DegToRad(60), 64.0/48.0, 0.1, 100).Mul4(mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})),
		Eye:      mgl32.Vec3{0, 0, 5},
	}
	if err := r.BeginFrame(view); err != nil {
		t.Fatal(err)
	}
	if err := r.DrawSprites("dot", batch); err != nil {
		t.Fatalf("DrawSprites: %v", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatal(err)
	}
	r.Present()

	if presented == nil {
		t.Fatal("presenter was not called")
	}
	if len(presented.Sprites) != 1 {
		t.Fatalf("frame has %d sprites, want 1", len(presented.Sprites))
	}
	centre := presented.Image.RGBAAt(32, 24)
	if centre.R < 200 || centre.G != 0 {
		t.Errorf("centre pixel = %v, want bright red", centre)
	}
	corner := presented.Image.RGBAAt(0, 0)
	if corner.R != 0 {
		t.Errorf("corner pixel = %v, want the clear colour", corner)
	}
	edge := presented.Image.RGBAAt(32+9, 24)
	if edge.R >= centre.R {
		t.Errorf("edge pixel %v is not dimmer than the centre %v", edge, centre)
	}
}

func TestReleasedRenderer(t *testing.T) {
	r, err := NewRenderer(BackendTypeSoftware, NewHeadlessSurface(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	r.Release()
	r.Release()
	if _, err := r.CreateGridTarget("g", 2); !errors.Is(err, ErrReleased) {
		t.Errorf("CreateGridTarget after Release: err = %v", err)
	}
	if err := r.BeginFrame(common.ViewState{}); !errors.Is(err, ErrReleased) {
		t.Errorf("BeginFrame after Release: err = %v", err)
	}
}

func TestWGPUBackendNeedsWindowSurface(t *testing.T) {
	if _, err := NewRenderer(BackendTypeWGPU, NewHeadlessSurface(8, 8)); err == nil {
		t.Fatal("wgpu backend created without a window surface")
	}
}
