// Package config provides level management for the puzzle map server.
//
// The config package handles:
//   - Loading levels from JSON or YAML files
//   - Caching decoded levels by id (file name without extension)
//   - Default level selection
//   - Hot reload of edited level files
//
// Level Format:
//
// A level is a rectangular layout of legend characters plus the player's
// start and a list of events. Events become map objects through a
// "@MapObject { ... }" tag in their page comments:
//
//	name: crates
//	description: Push the crate down the rail
//	layout:
//	  - "#######"
//	  - "#..=..#"
//	  - "#######"
//	player: {x: 1, y: 1, direction: right}
//	events:
//	  - name: crate
//	    x: 3
//	    y: 1
//	    pages:
//	      - comments: ["@MapObject { type: box, h: 1 }"]
//
// Every document is checked against the embedded JSON schema and then by
// engine.ValidateLevelConfig.
//
// Usage:
//
//	manager, err := config.NewManager("levels", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadConfig("tutorial")
//
//	// Drop cached levels when files change
//	go manager.Watch(ctx, func(id string) { logger.Info("reloaded", zap.String("id", id)) })
package config
