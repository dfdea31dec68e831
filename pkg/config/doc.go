/*
Package config loads the flowpulse service configuration.

Configuration is a YAML file layered over Default(). Durations use Go
syntax ("15s", "2500ms"). Load validates the result and wraps every
range error in ErrInvalidConfig.

Example file:

	server:
	  addr: 0.0.0.0:4000
	log:
	  level: info
	  json: false
	store:
	  maxEvents: 6000
	  resetLevel: 2000
	  seedCount: 200
	simulation:
	  minInterval: 10s
	  maxInterval: 20s
	stream:
	  heartbeat: 15s
	  queueSize: 128
	  maxPending: 64
	chaos:
	  statsErrorRate: 0
	  streamDropRate: 0
	  streamDropInterval: 10s
*/
package config
