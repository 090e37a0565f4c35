package engine

import "math"

// Map answers passability and coordinate-wrap queries for one level.
// Tile queries take integer tile coordinates; coordinate helpers work on
// sub-tile positions the way the host engine's looping maps do.
type Map interface {
	Width() int
	Height() int
	IsValid(x, y float64) bool
	IsPassable(x, y int, d Direction) bool
	IsWall(x, y int) bool
	IsGroove(x, y int) bool
	TerrainTag(x, y int) int
	RoundX(x float64) float64
	RoundY(y float64) float64
	RoundXWithDirection(x float64, d Direction) float64
	RoundYWithDirection(y float64, d Direction) float64
	XWithDirection(x float64, d Direction) float64
	YWithDirection(y float64, d Direction) float64
}

// Block bits. A set bit forbids leaving (or entering from) that side.
const (
	BlockDown  uint8 = 1 << 0
	BlockLeft  uint8 = 1 << 1
	BlockRight uint8 = 1 << 2
	BlockUp    uint8 = 1 << 3
	BlockAll   uint8 = BlockDown | BlockLeft | BlockRight | BlockUp
)

// blockBit mirrors the host's (1 << (d/2 - 1)) passage flag.
func blockBit(d Direction) uint8 {
	if !d.Valid() {
		return 0
	}
	return 1 << (uint(d)/2 - 1)
}

// Tile is the passage data of one map cell.
type Tile struct {
	Block   uint8 `json:"block"`
	Terrain int   `json:"terrain"`
	Groove  bool  `json:"groove,omitempty"`
}

// TileMap is a grid-backed Map.
type TileMap struct {
	width, height  int
	tiles          []Tile
	loopHorizontal bool
	loopVertical   bool
}

// NewTileMap creates a fully passable map of the given size.
func NewTileMap(width, height int) *TileMap {
	return &TileMap{
		width:  width,
		height: height,
		tiles:  make([]Tile, width*height),
	}
}

// SetLoop enables horizontal and/or vertical wrapping.
func (m *TileMap) SetLoop(horizontal, vertical bool) {
	m.loopHorizontal = horizontal
	m.loopVertical = vertical
}

// LoopsHorizontally reports horizontal wrapping.
func (m *TileMap) LoopsHorizontally() bool { return m.loopHorizontal }

// LoopsVertically reports vertical wrapping.
func (m *TileMap) LoopsVertically() bool { return m.loopVertical }

func (m *TileMap) index(x, y int) (int, bool) {
	if m.loopHorizontal {
		x = modInt(x, m.width)
	}
	if m.loopVertical {
		y = modInt(y, m.height)
	}
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0, false
	}
	return y*m.width + x, true
}

// Tile returns the tile at (x, y) and whether it is inside the map.
func (m *TileMap) Tile(x, y int) (Tile, bool) {
	i, ok := m.index(x, y)
	if !ok {
		return Tile{Block: BlockAll}, false
	}
	return m.tiles[i], true
}

// SetTile replaces the tile at (x, y).
func (m *TileMap) SetTile(x, y int, t Tile) {
	if i, ok := m.index(x, y); ok {
		m.tiles[i] = t
	}
}

// SetPass opens or blocks leaving (x, y) in direction d.
func (m *TileMap) SetPass(x, y int, d Direction, passable bool) {
	i, ok := m.index(x, y)
	if !ok {
		return
	}
	if passable {
		m.tiles[i].Block &^= blockBit(d)
	} else {
		m.tiles[i].Block |= blockBit(d)
	}
}

// SetTerrain sets the terrain tag of (x, y).
func (m *TileMap) SetTerrain(x, y, tag int) {
	if i, ok := m.index(x, y); ok {
		m.tiles[i].Terrain = tag
	}
}

// SetGroove marks (x, y) as groove terrain.
func (m *TileMap) SetGroove(x, y int, groove bool) {
	if i, ok := m.index(x, y); ok {
		m.tiles[i].Groove = groove
	}
}

func (m *TileMap) Width() int  { return m.width }
func (m *TileMap) Height() int { return m.height }

// IsValid is the host's bounds check on (possibly fractional) coordinates.
func (m *TileMap) IsValid(x, y float64) bool {
	return x >= 0 && x < float64(m.width) && y >= 0 && y < float64(m.height)
}

// IsPassable reports whether a character may leave (x, y) in direction d.
func (m *TileMap) IsPassable(x, y int, d Direction) bool {
	t, ok := m.Tile(x, y)
	if !ok {
		return false
	}
	return t.Block&blockBit(d) == 0
}

// IsWall reports whether the tile blocks all four directions.
func (m *TileMap) IsWall(x, y int) bool {
	t, ok := m.Tile(x, y)
	if !ok {
		return true
	}
	return t.Block&BlockAll == BlockAll
}

func (m *TileMap) IsGroove(x, y int) bool {
	t, ok := m.Tile(x, y)
	return ok && t.Groove
}

func (m *TileMap) TerrainTag(x, y int) int {
	t, ok := m.Tile(x, y)
	if !ok {
		return 0
	}
	return t.Terrain
}

func (m *TileMap) RoundX(x float64) float64 {
	if m.loopHorizontal {
		return modFloat(x, float64(m.width))
	}
	return x
}

func (m *TileMap) RoundY(y float64) float64 {
	if m.loopVertical {
		return modFloat(y, float64(m.height))
	}
	return y
}

func (m *TileMap) RoundXWithDirection(x float64, d Direction) float64 {
	return m.RoundX(x + d.DX())
}

func (m *TileMap) RoundYWithDirection(y float64, d Direction) float64 {
	return m.RoundY(y + d.DY())
}

func (m *TileMap) XWithDirection(x float64, d Direction) float64 {
	return x + d.DX()
}

func (m *TileMap) YWithDirection(y float64, d Direction) float64 {
	return y + d.DY()
}

func modInt(a, n int) int {
	if n <= 0 {
		return a
	}
	return ((a % n) + n) % n
}

func modFloat(a, n float64) float64 {
	if n <= 0 {
		return a
	}
	return math.Mod(math.Mod(a, n)+n, n)
}
