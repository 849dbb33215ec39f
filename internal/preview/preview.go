// Package preview renders a tile map in the terminal.
//
// Tiles have no images at this level, so the preview colors each GID
// deterministically: the same tile ID always gets the same color, which
// is enough to see the structure of a map at a glance. Objects are
// drawn as markers on top of the tile layers.
package preview

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/mapstorm/internal/tilemap"
)

// goldenAngle spreads hues so consecutive GIDs get distinct colors.
const goldenAngle = 137.508

// TileColor returns the display color for a GID. GID 0 (empty) maps to
// the default color.
func TileColor(gid uint32) tcell.Color {
	if gid == 0 {
		return tcell.ColorDefault
	}
	hue := float64(gid) * goldenAngle
	for hue >= 360 {
		hue -= 360
	}
	c := colorful.Hsv(hue, 0.55, 0.75)
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// Viewer displays a map on a tcell screen.
type Viewer struct {
	screen tcell.Screen
	m      *tilemap.Map

	// Scroll offset in tiles.
	offsetX int
	offsetY int

	// Index into m.Layers for solo view, -1 shows all layers.
	soloLayer int
}

// ViewerOption configures a Viewer.
type ViewerOption func(*Viewer)

// WithScreen supplies a screen instead of allocating a terminal one.
// Used with tcell's simulation screen in tests.
func WithScreen(screen tcell.Screen) ViewerOption {
	return func(v *Viewer) {
		v.screen = screen
	}
}

// NewViewer creates a viewer for the map.
func NewViewer(m *tilemap.Map, opts ...ViewerOption) (*Viewer, error) {
	v := &Viewer{
		m:         m,
		soloLayer: -1,
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, err
		}
		v.screen = screen
	}

	return v, nil
}

// Run initializes the screen and handles input until the user quits.
func (v *Viewer) Run() error {
	if err := v.screen.Init(); err != nil {
		return err
	}
	defer v.screen.Fini()

	for {
		v.draw()

		switch ev := v.screen.PollEvent().(type) {
		case *tcell.EventResize:
			v.screen.Sync()

		case *tcell.EventKey:
			if v.handleKey(ev) {
				return nil
			}
		}
	}
}

// handleKey processes one key event. Returns true to quit.
func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		v.scroll(0, -1)
	case tcell.KeyDown:
		v.scroll(0, 1)
	case tcell.KeyLeft:
		v.scroll(-1, 0)
	case tcell.KeyRight:
		v.scroll(1, 0)
	case tcell.KeyTab:
		v.cycleLayer()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'k':
			v.scroll(0, -1)
		case 'j':
			v.scroll(0, 1)
		case 'h':
			v.scroll(-1, 0)
		case 'l':
			v.scroll(1, 0)
		}
	}
	return false
}

// scroll moves the viewport, clamped to the map bounds.
func (v *Viewer) scroll(dx, dy int) {
	v.offsetX += dx
	v.offsetY += dy

	if v.offsetX < 0 {
		v.offsetX = 0
	}
	if v.offsetY < 0 {
		v.offsetY = 0
	}
	if v.offsetX >= v.m.Width {
		v.offsetX = v.m.Width - 1
	}
	if v.offsetY >= v.m.Height {
		v.offsetY = v.m.Height - 1
	}
}

// cycleLayer advances the solo layer, wrapping back to all-layers view.
func (v *Viewer) cycleLayer() {
	v.soloLayer++
	if v.soloLayer >= len(v.m.Layers) {
		v.soloLayer = -1
	}
}

// draw renders the visible part of the map plus a status line.
func (v *Viewer) draw() {
	v.screen.Clear()
	width, height := v.screen.Size()

	// The bottom row is the status line. Each tile is two cells wide so
	// the aspect ratio is roughly square in a terminal.
	mapRows := height - 1
	for sy := 0; sy < mapRows; sy++ {
		ty := v.offsetY + sy
		if ty >= v.m.Height {
			break
		}
		for sx := 0; sx*2+1 < width; sx++ {
			tx := v.offsetX + sx
			if tx >= v.m.Width {
				break
			}

			gid := v.topTile(tx, ty)
			style := tcell.StyleDefault.Background(TileColor(gid))
			v.screen.SetContent(sx*2, sy, ' ', nil, style)
			v.screen.SetContent(sx*2+1, sy, ' ', nil, style)
		}
	}

	v.drawObjects(width, mapRows)
	v.drawStatus(width, height)
	v.screen.Show()
}

// topTile returns the topmost visible non-empty GID at tile coordinates.
func (v *Viewer) topTile(x, y int) uint32 {
	for i := len(v.m.Layers) - 1; i >= 0; i-- {
		if v.soloLayer >= 0 && i != v.soloLayer {
			continue
		}
		layer, ok := v.m.Layers[i].(*tilemap.TileLayer)
		if !ok || !layer.Visible() {
			continue
		}
		if gid := layer.TileAt(x, y); gid != 0 {
			return gid
		}
	}
	return 0
}

// drawObjects marks object positions with 'o'.
func (v *Viewer) drawObjects(width, mapRows int) {
	if v.m.TileWidth == 0 || v.m.TileHeight == 0 {
		return
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	for i, l := range v.m.Layers {
		if v.soloLayer >= 0 && i != v.soloLayer {
			continue
		}
		layer, ok := l.(*tilemap.ObjectLayer)
		if !ok || !layer.Visible() {
			continue
		}
		for _, obj := range layer.Objects {
			tx := int(obj.X)/v.m.TileWidth - v.offsetX
			ty := int(obj.Y)/v.m.TileHeight - v.offsetY
			if tx < 0 || ty < 0 || tx*2 >= width || ty >= mapRows {
				continue
			}
			v.screen.SetContent(tx*2, ty, 'o', nil, style)
		}
	}
}

// drawStatus renders the bottom status line.
func (v *Viewer) drawStatus(width, height int) {
	layerName := "all layers"
	if v.soloLayer >= 0 && v.soloLayer < len(v.m.Layers) {
		layerName = v.m.Layers[v.soloLayer].LayerName()
	}

	status := fmt.Sprintf(" %dx%d %s | %s | arrows scroll, tab layer, q quit",
		v.m.Width, v.m.Height, v.m.Orientation, layerName)

	style := tcell.StyleDefault.Reverse(true)
	for x := 0; x < width; x++ {
		r := ' '
		if x < len(status) {
			r = rune(status[x])
		}
		v.screen.SetContent(x, height-1, r, nil, style)
	}
}
