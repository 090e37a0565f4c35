package engine

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// MapObjectMarker introduces the object metadata block in an event's note
// or page comments, e.g. "@MapObject { type: box, h: 1, fallable: true }".
const MapObjectMarker = "@MapObject"

// ObjectType is the behavior class of a map object.
type ObjectType int

const (
	ObjectPlain ObjectType = iota
	ObjectBox
	ObjectPlatform
)

// ParseObjectType maps a designer tag to an ObjectType. Unknown tags are plain.
func ParseObjectType(tag string) ObjectType {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "box":
		return ObjectBox
	case "platform", "lift", "raft":
		return ObjectPlatform
	}
	return ObjectPlain
}

func (t ObjectType) String() string {
	switch t {
	case ObjectBox:
		return "box"
	case ObjectPlatform:
		return "platform"
	}
	return "plain"
}

func (t ObjectType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ObjectType) UnmarshalText(b []byte) error {
	*t = ParseObjectType(string(b))
	return nil
}

// ObjectConfig is the typed metadata of a map object.
type ObjectConfig struct {
	Type     ObjectType `json:"type"`
	Tag      string     `json:"tag,omitempty"`
	Height   int        `json:"height"`
	Fallable bool       `json:"fallable"`
	Trigger  string     `json:"trigger,omitempty"`
}

// DefaultObjectConfig is the state every parse starts from.
func DefaultObjectConfig() ObjectConfig {
	return ObjectConfig{Type: ObjectPlain, Height: -1}
}

// ParseObjectConfig reads the first "@MapObject { ... }" block in text. The
// second result reports whether the marker was present at all. Pairs that
// fail to decode are skipped and unknown keys ignored.
func ParseObjectConfig(text string) (ObjectConfig, bool) {
	cfg := DefaultObjectConfig()
	idx := strings.Index(text, MapObjectMarker)
	if idx < 0 {
		return cfg, false
	}
	rest := text[idx+len(MapObjectMarker):]
	open := strings.Index(rest, "{")
	end := strings.Index(rest, "}")
	if open < 0 || end < open {
		return cfg, true
	}

	pairs := strings.FieldsFunc(rest[open+1:end], func(r rune) bool {
		return r == ',' || r == '\n'
	})
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "type":
			var tag string
			if decodeScalar(value, &tag) == nil {
				cfg.Tag = tag
				cfg.Type = ParseObjectType(tag)
			}
		case "h", "height":
			var h int
			if decodeScalar(value, &h) == nil && h >= 0 {
				cfg.Height = h
			}
		case "fallable":
			var b bool
			if decodeScalar(value, &b) == nil {
				cfg.Fallable = b
			}
		case "trigger":
			var name string
			if decodeScalar(value, &name) == nil {
				cfg.Trigger = name
			}
		}
	}
	return cfg, true
}

func decodeScalar(value string, out any) error {
	return yaml.Unmarshal([]byte(value), out)
}

// setupPage activates page (or none when page is -1) and re-reads the
// object metadata from scratch.
func (w *World) setupPage(c *Character, page int) {
	c.pageIndex = page
	c.mapObject = false
	c.object = DefaultObjectConfig()
	c.route = nil
	c.routeIdx = 0

	if page < 0 || page >= len(c.pages) {
		c.pageIndex = -1
		c.through = true
	} else {
		p := c.pages[page]
		if p.Direction.Valid() {
			c.SetDirection(p.Direction)
		}
		if p.MoveSpeed > 0 {
			c.SetMoveSpeed(p.MoveSpeed)
		}
		if p.Frequency > 0 {
			c.frequency = p.Frequency
		}
		c.priority = p.Priority
		c.through = p.Through
		c.route = p.Route
		c.repeat = p.Repeat
		c.skippable = p.Skippable

		cfg, ok := ParseObjectConfig(strings.Join(p.Comments, "\n"))
		if !ok {
			cfg, ok = ParseObjectConfig(c.note)
		}
		c.mapObject = ok
		c.object = cfg
	}

	if !c.CanRide() && c.riderID >= 0 {
		w.GetOff(w.Character(c.riderID))
	}
}

// SetEventPage switches the active page of an event.
func (w *World) SetEventPage(id, page int) error {
	c := w.Character(id)
	if c == nil || c.IsPlayer() {
		return ErrUnknownCharacter
	}
	if page < -1 || page >= len(c.pages) {
		return ErrInvalidPage
	}
	w.setupPage(c, page)
	w.emit(Event{Kind: EventPageChanged, CharacterID: id, TargetID: page})
	return nil
}
