/*
Package log provides structured logging for FlowPulse using zerolog.

Call Init once at startup, then derive component loggers:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("hub")
	logger.Info().Int("subscribers", n).Msg("Broadcast complete")

Until Init runs the global Logger is the zerolog zero value, which drops
every message. Tests rely on this to stay quiet.

Field conventions:

	component      package emitting the record (store, hub, simulation, api)
	subscriber_id  stream subscription the record refers to
	event_id       event being generated or broadcast
*/
package log
