package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// softwareMaxGridSize matches the WebGPU default maxTextureDimension2D.
const softwareMaxGridSize = 8192

// discSegments is the number of polygon edges used to rasterize one sprite.
const discSegments = 16

// Frame is a completed frame of the software backend.
type Frame struct {
	// Image is the composited frame, origin top-left.
	Image *image.RGBA
	// Sprites lists every sprite drawn in the frame in draw order (back to front).
	Sprites []common.Sprite
	// View is the camera state the frame was drawn with.
	View common.ViewState
}

// softwareGrid is the GridTarget of the software backend.
type softwareGrid struct {
	label    string
	size     int
	texels   []float32
	released bool
}

func (g *softwareGrid) Label() string { return g.label }
func (g *softwareGrid) Size() int     { return g.size }

type softwareRendererBackend struct {
	mu   *sync.Mutex
	pool worker.DynamicWorkerPool

	workers     int
	maxGridSize int
	clearColor  color.RGBA
	presenter   func(Frame)

	width, height int
	target        *image.RGBA
	mask          *image.Alpha
	raster        *vector.Rasterizer

	view      common.ViewState
	frustum   common.Frustum
	inFrame   bool
	sprites   []common.Sprite
	completed *Frame
	taskID    int
}

var _ RendererBackend = &softwareRendererBackend{}

func newSoftwareRendererBackend(workers, maxGridSize int, clearColor color.RGBA, presenter func(Frame)) RendererBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if maxGridSize <= 0 || maxGridSize > softwareMaxGridSize {
		maxGridSize = softwareMaxGridSize
	}
	return &softwareRendererBackend{
		mu:          &sync.Mutex{},
		pool:        worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		workers:     workers,
		maxGridSize: maxGridSize,
		clearColor:  clearColor,
		presenter:   presenter,
		raster:      vector.NewRasterizer(1, 1),
	}
}

func (b *softwareRendererBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("software surface: invalid size %dx%d", width, height)
	}
	b.width, b.height = width, height
	b.target = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

func (b *softwareRendererBackend) SetPresentMode(PresentMode) {}

func (b *softwareRendererBackend) MaxGridSize() int {
	return b.maxGridSize
}

func (b *softwareRendererBackend) CreateGridTarget(label string, size int) (GridTarget, error) {
	return &softwareGrid{
		label:  label,
		size:   size,
		texels: make([]float32, size*size*common.TexelChannels),
	}, nil
}

func (b *softwareRendererBackend) grid(target GridTarget) (*softwareGrid, error) {
	g, ok := target.(*softwareGrid)
	if !ok {
		return nil, fmt.Errorf("grid %s was not created by the software backend", target.Label())
	}
	if g.released {
		return nil, fmt.Errorf("grid %s: %w", g.label, ErrReleased)
	}
	return g, nil
}

func (b *softwareRendererBackend) WriteGridTarget(target GridTarget, data common.GridStagingData) error {
	g, err := b.grid(target)
	if err != nil {
		return err
	}
	copy(g.texels, data.Texels)
	return nil
}

func (b *softwareRendererBackend) ReadGridTarget(target GridTarget) (common.GridStagingData, error) {
	g, err := b.grid(target)
	if err != nil {
		return common.GridStagingData{}, err
	}
	out := make([]float32, len(g.texels))
	copy(out, g.texels)
	return common.GridStagingData{Texels: out, Size: g.size}, nil
}

func (b *softwareRendererBackend) ReleaseGridTarget(target GridTarget) {
	if g, ok := target.(*softwareGrid); ok {
		g.released = true
		g.texels = nil
	}
}

func (b *softwareRendererBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.GridKernel() == nil {
		return fmt.Errorf("compute pipeline has no grid kernel for the software backend")
	}
	return nil
}

func (b *softwareRendererBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p.SpriteKernel() == nil {
		return fmt.Errorf("render pipeline has no sprite kernel for the software backend")
	}
	return nil
}

func (b *softwareRendererBackend) ReleasePipeline(pipeline.Pipeline) {}

// Grid passes complete before DispatchGrid returns, so a compute frame has nothing to batch.
func (b *softwareRendererBackend) BeginComputeFrame() error { return nil }
func (b *softwareRendererBackend) EndComputeFrame() error   { return nil }

func (b *softwareRendererBackend) DispatchGrid(p pipeline.Pipeline, pass GridPass) error {
	src, err := b.grid(pass.Source)
	if err != nil {
		return err
	}
	dst, err := b.grid(pass.Target)
	if err != nil {
		return err
	}
	kernel := p.GridKernel()
	size := src.size

	// Rows are split into one band per worker. A WaitGroup is the per-pass barrier.
	rowsPerTask := common.CeilDiv(size, b.workers)
	var wg sync.WaitGroup
	for row := 0; row < size; row += rowsPerTask {
		first, last := row, min(row+rowsPerTask, size)
		wg.Add(1)
		b.mu.Lock()
		id := b.taskID
		b.taskID++
		b.mu.Unlock()
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for j := first; j < last; j++ {
					for i := range size {
						index := i + j*size
						texel := kernel(pass.Uniforms, src.texels, size, index)
						copy(dst.texels[index*common.TexelChannels:], texel[:])
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}

func (b *softwareRendererBackend) BeginFrame(view common.ViewState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if view.Width != b.width || view.Height != b.height {
		view.Width, view.Height = b.width, b.height
	}
	draw.Draw(b.target, b.target.Bounds(), image.NewUniform(b.clearColor), image.Point{}, draw.Src)
	b.view = view
	b.frustum = common.ExtractFrustum(view.ViewProj)
	b.sprites = b.sprites[:0]
	b.inFrame = true
	return nil
}

func (b *softwareRendererBackend) DrawSprites(p pipeline.Pipeline, batch SpriteBatch) error {
	src, err := b.grid(batch.Source)
	if err != nil {
		return err
	}
	kernel := p.SpriteKernel()

	b.mu.Lock()
	defer b.mu.Unlock()

	bounds := b.target.Bounds()
	drawn := make([]common.Sprite, 0, batch.Count)
	for k := range batch.Count {
		coord := mgl32.Vec2{batch.Coords[2*k], batch.Coords[2*k+1]}
		i := min(int(coord[0]*float32(src.size)), src.size-1)
		j := min(int(coord[1]*float32(src.size)), src.size-1)
		o := (i + j*src.size) * common.TexelChannels
		texel := mgl32.Vec4{src.texels[o], src.texels[o+1], src.texels[o+2], src.texels[o+3]}

		if !b.frustum.ContainsPoint(texel.Vec3()) {
			continue
		}
		s, ok := kernel(batch.Uniforms, texel, coord, b.view)
		if !ok || s.Size <= 0 {
			continue
		}
		r := spriteRect(s)
		if !r.Overlaps(bounds) {
			continue
		}
		drawn = append(drawn, s)
	}

	// Blending without depth writes: draw back to front.
	sort.SliceStable(drawn, func(a, c int) bool {
		return drawn[a].Depth > drawn[c].Depth
	})
	for _, s := range drawn {
		b.rasterize(s)
	}
	b.sprites = append(b.sprites, drawn...)
	return nil
}

// spriteRect returns the pixel bounds of a sprite.
func spriteRect(s common.Sprite) image.Rectangle {
	radius := s.Size * 0.5
	return image.Rect(
		int(math.Floor(float64(s.Position[0]-radius))),
		int(math.Floor(float64(s.Position[1]-radius))),
		int(math.Ceil(float64(s.Position[0]+radius))),
		int(math.Ceil(float64(s.Position[1]+radius))),
	)
}

// rasterize draws one soft disc. The disc coverage comes from the vector rasterizer and is
// then scaled by the 1 - d² falloff and the sprite alpha before compositing.
// Caller must hold the mutex.
func (b *softwareRendererBackend) rasterize(s common.Sprite) {
	r := spriteRect(s)
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return
	}
	if b.mask == nil || b.mask.Rect.Dx() < w || b.mask.Rect.Dy() < h {
		b.mask = image.NewAlpha(image.Rect(0, 0, max(w, 16), max(h, 16)))
	}
	local := image.Rect(0, 0, w, h)
	clear(b.mask.Pix)

	radius := s.Size * 0.5
	cx := s.Position[0] - float32(r.Min.X)
	cy := s.Position[1] - float32(r.Min.Y)

	b.raster.Reset(w, h)
	b.raster.DrawOp = draw.Src
	for k := range discSegments {
		a := 2 * math.Pi * float64(k) / discSegments
		x := cx + radius*float32(math.Cos(a))
		y := cy + radius*float32(math.Sin(a))
		if k == 0 {
			b.raster.MoveTo(x, y)
		} else {
			b.raster.LineTo(x, y)
		}
	}
	b.raster.ClosePath()
	b.raster.Draw(b.mask, local, image.Opaque, image.Point{})

	for y := range h {
		for x := range w {
			off := b.mask.PixOffset(x, y)
			coverage := b.mask.Pix[off]
			if coverage == 0 {
				continue
			}
			dx := (float32(x) + 0.5 - cx) / radius
			dy := (float32(y) + 0.5 - cy) / radius
			falloff := common.Clamp(1-(dx*dx+dy*dy), 0, 1) * common.Clamp(s.Color[3], 0, 1)
			b.mask.Pix[off] = uint8(float32(coverage) * falloff)
		}
	}

	src := image.NewUniform(color.RGBA{
		R: uint8(common.Clamp(s.Color[0], 0, 1)*255 + 0.5),
		G: uint8(common.Clamp(s.Color[1], 0, 1)*255 + 0.5),
		B: uint8(common.Clamp(s.Color[2], 0, 1)*255 + 0.5),
		A: 255,
	})
	draw.DrawMask(b.target, r, src, image.Point{}, b.mask, image.Point{}, draw.Over)
}

func (b *softwareRendererBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return ErrNoFrame
	}
	b.inFrame = false
	sprites := make([]common.Sprite, len(b.sprites))
	copy(sprites, b.sprites)
	b.completed = &Frame{Image: b.target, Sprites: sprites, View: b.view}
	return nil
}

func (b *softwareRendererBackend) Present() {
	b.mu.Lock()
	frame, presenter := b.completed, b.presenter
	b.mu.Unlock()
	if frame == nil || presenter == nil {
		return
	}
	presenter(*frame)
}

func (b *softwareRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = nil
	b.mask = nil
	b.completed = nil
}
