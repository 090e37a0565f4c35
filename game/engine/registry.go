package engine

// events returns the map events (every character but the player).
func (w *World) events() []*Character {
	if len(w.chars) <= 1 {
		return nil
	}
	return w.chars[1:]
}

// ObjectAtRideFootprint finds the first free object whose ride footprint is
// (x, y). Objects standing on exclude are skipped.
func (w *World) ObjectAtRideFootprint(x, y int, exclude int) *Character {
	for _, e := range w.events() {
		if e.id == exclude || !e.CanRide() || e.riderID >= 0 {
			continue
		}
		if fx, fy := e.RideFootprint(); fx != x || fy != y {
			continue
		}
		if exclude >= 0 && w.ridesTransitively(e, exclude) {
			continue
		}
		return e
	}
	return nil
}

// MapObjectAt finds a map object standing exactly on (x, y).
func (w *World) MapObjectAt(x, y int, exclude int) *Character {
	for _, e := range w.events() {
		if e.id == exclude || e.through || !e.mapObject {
			continue
		}
		if e.Pos(float64(x), float64(y)) {
			return e
		}
	}
	return nil
}

// RiddenObjectAt finds an object carrying someone other than exclude whose
// tile or ride footprint is (x, y).
func (w *World) RiddenObjectAt(x, y int, exclude int) *Character {
	for _, e := range w.events() {
		if e.id == exclude || e.riderID < 0 || e.riderID == exclude {
			continue
		}
		fx, fy := e.RideFootprint()
		if (tileOf(e.x) == x && tileOf(e.y) == y) || (fx == x && fy == y) {
			return e
		}
	}
	return nil
}

// FindMountableAlong scans outward from (x, y) along d up to maxRange tiles
// and returns the first rideable object whose tile or footprint is crossed.
func (w *World) FindMountableAlong(x, y float64, d Direction, maxRange int, exclude int) *Character {
	if !d.Valid() {
		return nil
	}
	m := w.Map()
	for i := 1; i <= maxRange; i++ {
		tx, ty := advanceTile(m, x, y, d, float64(i))
		for _, e := range w.events() {
			if e.id == exclude || !e.CanRide() {
				continue
			}
			fx, fy := e.RideFootprint()
			if (tileOf(e.x) == tx && tileOf(e.y) == ty) || (fx == tx && fy == ty) {
				return e
			}
		}
	}
	return nil
}

// IsCollided reports whether c would bump into another character at (x, y).
// Riders and through characters never block.
func (w *World) IsCollided(c *Character, x, y float64) bool {
	for _, o := range w.chars {
		if o.id == c.id || o.through || !o.Pos(x, y) {
			continue
		}
		switch {
		case c.IsPlayer():
			if o.IsNormalPriority() {
				return true
			}
		case o.IsPlayer():
			if c.IsNormalPriority() && !o.Riding() {
				return true
			}
		default:
			if !o.Riding() {
				return true
			}
		}
	}
	return false
}

// IsGuide reports the guide terrain tag at (x, y).
func (w *World) IsGuide(x, y int) bool {
	return w.m.TerrainTag(x, y) == w.settings.GuideTerrainTag
}
