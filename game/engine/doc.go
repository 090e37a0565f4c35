// Package engine provides the core movement rules of the puzzle map.
//
// The engine package implements tile-based puzzle movement including:
//   - Riding platforms and stepping or jumping between them
//   - Pushing boxes along guide-rail terrain
//   - Jumping across grooves and down ledges
//   - Falling boxes that land on rails or catch on objects below
//   - Scripted skill moves that hand the player's input to an object
//
// Core Types:
//
// World is the simulation context: the Map, an arena of Characters (id 0 is
// the player, events follow) and the active Behaviors. World.Update runs one
// frame. GameEngine wraps a World with a level, history and a replay journal
// so that one call to Move runs a whole input to completion.
//
// Usage:
//
//	config, err := engine.LoadConfigByName("tutorial")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Move the player
//	success := gameEngine.Move("right")
//	state := gameEngine.GetState()
//
// Object metadata:
//
// An event becomes a map object when its active page comments, or failing
// that its note, contain a block such as
//
//	@MapObject { type: box, h: 1, fallable: true, trigger: crateLanded }
//
// Objects with a height of zero or more can be ridden. Boxes move only along
// guide terrain, can be pushed by movers, and fall when stepped off an edge.
package engine
