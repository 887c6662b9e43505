package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"github.com/tochemey/goakt/v3/actor"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/level"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/physics"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/scene"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/ui"
)

// whiteImage is the texture every filled box is drawn with.
var whiteImage = ebiten.NewImage(3, 3)

var (
	skyColor     = color.RGBA{R: 150, G: 190, B: 230, A: 255}
	waterColor   = color.RGBA{R: 20, G: 50, B: 100, A: 255}
	wallColor    = color.RGBA{R: 230, G: 220, B: 180, A: 255}
	squidColor   = color.RGBA{R: 230, G: 110, B: 150, A: 255}
	handColor    = color.RGBA{R: 255, G: 170, B: 200, A: 255}
	outlineColor = color.RGBA{R: 120, G: 255, B: 120, A: 255}
	deadColor    = color.RGBA{R: 110, G: 110, B: 110, A: 255}
	pendingColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	kindColors   = map[physics.Kind]color.RGBA{
		physics.KindHuman: {R: 240, G: 200, B: 150, A: 255},
		physics.KindFish:  {R: 250, G: 160, B: 40, A: 255},
		physics.KindShip:  {R: 140, G: 90, B: 50, A: 255},
	}
)

type Game struct {
	ctx        context.Context
	System     actor.ActorSystem
	worldPID   *actor.PID
	snapshotCh chan *scene.Snapshot
	lastState  *scene.Snapshot

	// UI Controls
	panel *ui.UIPanel

	// Widget references for easy access
	widgetMaxSpeed    *ui.Slider
	widgetMouthRadius *ui.Slider
	widgetGripRadius  *ui.Slider
	widgetShowShapes  *ui.Checkbox
	widgetEditWalls   *ui.Checkbox
	widgetBuildup     *ui.Gauge
	widgetSpeed       *ui.Gauge

	cfg       *scene.Config
	wallsFile string
	tuned     [3]float64
	wallStart *cp.Vector // first end of a wall being drawn
	status    string

	// Timing instrumentation
	lastUpdateDuration time.Duration
	lastDrawDuration   time.Duration
	updateAvg          float64 // Rolling average in ms
	drawAvg            float64 // Rolling average in ms
}

// GetNewGame spawns the world actor in system and builds the viewer around it.
func GetNewGame(ctx context.Context, cfg *scene.Config, walls []level.Wall, wallsFile string, system actor.ActorSystem) (*Game, error) {
	// 1. Create Channels for communication
	snapshotCh := make(chan *scene.Snapshot, 10) // Buffer to avoid blocking

	// 2. Spawn World Actor
	worldPID, err := system.Spawn(ctx, "world", simulation.NewWorldActor(snapshotCh, cfg, walls))
	if err != nil {
		return nil, fmt.Errorf("failed to spawn world: %w", err)
	}

	g := &Game{
		ctx:        ctx,
		System:     system,
		worldPID:   worldPID,
		snapshotCh: snapshotCh,
		lastState:  &scene.Snapshot{Reaching: -1}, // Avoid nil pointer
		cfg:        cfg,
		wallsFile:  wallsFile,
		tuned:      [3]float64{cfg.MaxSpeed, cfg.MouthRadius, cfg.GripRadius},
	}

	// 3. Initialize UI Panel
	panel := ui.NewUIPanel("Squid (Tab hides)", 10, 10, 220, cfg.WorldHeight-20)

	panel.AddSection("Squid")
	g.widgetMaxSpeed = panel.AddSlider("Max Speed", 100, 800, cfg.MaxSpeed)
	g.widgetMouthRadius = panel.AddSlider("Mouth Radius", 5, 80, cfg.MouthRadius)
	g.widgetGripRadius = panel.AddSlider("Grip Radius", 1, 20, cfg.GripRadius)
	g.widgetBuildup = panel.AddGauge("Push Buildup", 1)
	g.widgetSpeed = panel.AddGauge("Speed", cfg.MaxSpeed)
	panel.EndSection()

	panel.AddSection("Level")
	g.widgetEditWalls = panel.AddCheckbox("Edit Walls (F2)", false)
	panel.AddButton("Undo Wall", g.undoWall)
	panel.AddButton("Save Walls (Enter)", g.saveWalls)
	panel.EndSection()

	panel.AddSection("Visualization")
	g.widgetShowShapes = panel.AddCheckbox("Collision Shapes (F1)", false)
	panel.EndSection()

	g.panel = panel
	return g, nil
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.lastUpdateDuration = time.Since(start)
		// Rolling average (exponential moving average)
		g.updateAvg = g.updateAvg*0.95 + float64(g.lastUpdateDuration.Microseconds())/1000.0*0.05
	}()

	// 1. Update UI Panel
	g.panel.Update()

	// 2. Retrieve Latest State (Non-blocking)
	select {
	case snap := <-g.snapshotCh:
		g.lastState = snap
	default:
		// Use previous state if new one isn't ready
	}

	// 3. Keyboard
	g.handleKeys()

	// 4. Send slider changes to the world
	tuned := [3]float64{g.widgetMaxSpeed.Value, g.widgetMouthRadius.Value, g.widgetGripRadius.Value}
	if tuned != g.tuned {
		g.tuned = tuned
		g.tell(simulation.TuneMessage(tuned[0], tuned[1], tuned[2]))
	}

	// 5. Mouse, then trigger the simulation step
	g.tell(simulation.FrameMessage(g.handleMouse()))
	return nil
}

func (g *Game) tell(msg *structpb.Struct) {
	if err := actor.Tell(g.ctx, g.worldPID, msg); err != nil {
		g.System.Logger().Warnf("world rejected %s: %v", simulation.CommandKind(msg), err)
	}
}

func (g *Game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyF1):
		g.widgetShowShapes.Toggle()
	case inpututil.IsKeyJustPressed(ebiten.KeyF2):
		g.widgetEditWalls.Toggle()
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		g.panel.Hidden = !g.panel.Hidden
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		g.saveWalls()
	case inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		g.undoWall()
	}

	spawns := map[ebiten.Key]physics.Kind{
		ebiten.Key1: physics.KindHuman,
		ebiten.Key2: physics.KindFish,
		ebiten.Key3: physics.KindShip,
	}
	for key, kind := range spawns {
		if inpututil.IsKeyJustPressed(key) {
			g.tell(simulation.SpawnMessage(kind, g.pointer()))
		}
	}
	if !g.widgetEditWalls.Value {
		g.wallStart = nil
	}
}

// handleMouse turns the mouse into this frame's input. In wall edit mode
// clicks place wall ends instead and the squid gets no buttons.
func (g *Game) handleMouse() scene.Input {
	in := scene.Input{Pointer: g.pointer()}
	mx, my := ebiten.CursorPosition()
	if g.panel.Contains(float64(mx), float64(my)) {
		return in
	}

	if g.widgetEditWalls.Value {
		if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
			g.wallStart = nil
		}
		if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
			p := in.Pointer
			if g.wallStart == nil {
				g.wallStart = &p
			} else {
				g.tell(simulation.AddWallMessage(level.NewWall(*g.wallStart, p)))
				g.wallStart = nil
			}
		}
		return in
	}

	in.Primary = ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	in.Secondary = ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	return in
}

func (g *Game) undoWall() {
	g.tell(simulation.UndoWallMessage())
}

// saveWalls asks the world to write the walls without blocking the frame.
func (g *Game) saveWalls() {
	go func() {
		resp, err := actor.Ask(g.ctx, g.worldPID, simulation.SaveWallsMessage(g.wallsFile), 2*time.Second)
		if ok, isBool := resp.(*wrapperspb.BoolValue); err != nil || !isBool || !ok.GetValue() {
			g.System.Logger().Errorf("walls not saved to %s: %v", g.wallsFile, err)
			return
		}
		g.System.Logger().Infof("walls saved to %s", g.wallsFile)
	}()
	g.status = "saving walls to " + g.wallsFile
}

// ---------------------------------------------------------------------
// Camera. The view follows the squid's main body.
// ---------------------------------------------------------------------

func (g *Game) camera() cp.Vector {
	return cp.Vector{X: g.lastState.Body.X, Y: g.lastState.Body.Y}
}

func (g *Game) toScreen(p cp.Vector) (float32, float32) {
	c := g.camera()
	return float32(p.X - c.X + g.cfg.WorldWidth/2), float32(p.Y - c.Y + g.cfg.WorldHeight/2)
}

// pointer is the mouse position in world coordinates.
func (g *Game) pointer() cp.Vector {
	mx, my := ebiten.CursorPosition()
	c := g.camera()
	return cp.Vector{X: float64(mx) + c.X - g.cfg.WorldWidth/2, Y: float64(my) + c.Y - g.cfg.WorldHeight/2}
}

// corners returns the four world-space corners of a transform.
func corners(t scene.Transform) [4]cp.Vector {
	cos, sin := math.Cos(t.Angle), math.Sin(t.Angle)
	hw, hh := t.W/2, t.H/2
	local := [4]cp.Vector{{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh}}
	var out [4]cp.Vector
	for i, l := range local {
		out[i] = cp.Vector{X: t.X + l.X*cos - l.Y*sin, Y: t.Y + l.X*sin + l.Y*cos}
	}
	return out
}

func (g *Game) fillBox(screen *ebiten.Image, t scene.Transform, clr color.RGBA) {
	r, gr, b, a := float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255, float32(clr.A)/255
	vertices := make([]ebiten.Vertex, 4)
	for i, c := range corners(t) {
		x, y := g.toScreen(c)
		vertices[i] = ebiten.Vertex{
			DstX: x, DstY: y,
			SrcX: 1, SrcY: 1,
			ColorR: r, ColorG: gr, ColorB: b, ColorA: a,
		}
	}
	screen.DrawTriangles(vertices, []uint16{0, 1, 2, 0, 2, 3}, whiteImage, &ebiten.DrawTrianglesOptions{})
}

func (g *Game) strokePolygon(screen *ebiten.Image, poly []cp.Vector, clr color.RGBA) {
	for i := range poly {
		x0, y0 := g.toScreen(poly[i])
		x1, y1 := g.toScreen(poly[(i+1)%len(poly)])
		vector.StrokeLine(screen, x0, y0, x1, y1, 1, clr, true)
	}
}

func (g *Game) strokeWall(screen *ebiten.Image, a, b cp.Vector, clr color.RGBA) {
	x0, y0 := g.toScreen(a)
	x1, y1 := g.toScreen(b)
	vector.StrokeLine(screen, x0, y0, x1, y1, 2, clr, true)
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.lastDrawDuration = time.Since(start)
		g.drawAvg = g.drawAvg*0.95 + float64(g.lastDrawDuration.Microseconds())/1000.0*0.05
	}()
	snap := g.lastState

	// 1. Sky and water
	screen.Fill(skyColor)
	_, waterY := g.toScreen(cp.Vector{Y: physics.Waterline})
	if waterY < float32(g.cfg.WorldHeight) {
		top := max(waterY, 0)
		vector.FillRect(screen, 0, top, float32(g.cfg.WorldWidth), float32(g.cfg.WorldHeight)-top, waterColor, true)
	}

	// 2. Level
	for _, w := range snap.Walls {
		g.strokeWall(screen, w.A(), w.B(), wallColor)
	}
	if g.wallStart != nil {
		g.strokeWall(screen, *g.wallStart, g.pointer(), pendingColor)
	}

	// 3. NPCs
	for _, n := range snap.NPCs {
		clr := kindColors[n.Kind]
		if n.State == behavior.Dead {
			clr = deadColor
		}
		g.fillBox(screen, n.Transform, clr)
		x, y := g.toScreen(cp.Vector{X: n.Transform.X, Y: n.Transform.Y - n.Transform.H})
		label := n.State.String()
		if n.Kind == physics.KindHuman && n.Breath < 10 {
			label = fmt.Sprintf("%s %.0fs", label, n.Breath)
		}
		ebitenutil.DebugPrintAt(screen, label, int(x)-3*len(label), int(y)-16)
	}

	// 4. Squid, tentacles first so the body covers their roots
	for _, t := range snap.Short {
		for _, seg := range t {
			g.fillBox(screen, seg, squidColor)
		}
	}
	for i, t := range snap.Long {
		for j, seg := range t {
			clr := squidColor
			if j == len(t)-1 {
				clr = handColor
			}
			g.fillBox(screen, seg, clr)
		}
		if snap.Caught[i] != physics.NoEntity && len(t) > 0 {
			hx, hy := g.toScreen(cp.Vector{X: t[len(t)-1].X, Y: t[len(t)-1].Y})
			vector.StrokeCircle(screen, hx, hy, 8, 2, pendingColor, true)
		}
	}
	for _, seg := range snap.Spine {
		g.fillBox(screen, seg, squidColor)
	}
	g.fillBox(screen, snap.Body, squidColor)

	// 5. Collision shapes
	if g.widgetShowShapes.Value {
		for _, poly := range snap.Polygons {
			g.strokePolygon(screen, poly, outlineColor)
		}
	}

	// 6. HUD
	g.widgetBuildup.Value = snap.Buildup
	g.widgetSpeed.Value = snap.Speed
	g.widgetSpeed.Max = g.widgetMaxSpeed.Value
	g.panel.Draw(screen)

	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\n\nUpdate: %.2fms\nDraw:   %.2fms\n\nPose:  %s\nPhase: %s\nPush:  %s\nSpeed: %.0f",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		g.updateAvg,
		g.drawAvg,
		snap.Pose,
		snap.Phase,
		snap.Push,
		snap.Speed)
	ebitenutil.DebugPrintAt(screen, msg, int(g.cfg.WorldWidth)-150, 10)
	if g.widgetEditWalls.Value {
		ebitenutil.DebugPrintAt(screen, "EDIT WALLS: left click twice to add, right click cancels", 240, int(g.cfg.WorldHeight)-40)
	}
	if g.status != "" {
		ebitenutil.DebugPrintAt(screen, g.status, 240, int(g.cfg.WorldHeight)-20)
	}
}

func (g *Game) Layout(w, h int) (int, int) { return int(g.cfg.WorldWidth), int(g.cfg.WorldHeight) }

func init() {
	whiteImage.Fill(color.White)
}
