/*
Package api serves flowpulse over HTTP.

Routes are mounted on a chi router:

	GET /snapshot              overview, 24h timeline and 24h volume in one read
	GET /stats/overview        cached overview stats
	GET /stats/timeline        events from the last ?hours= hours (default 24)
	GET /stats/anomalies       newest ?limit= anomalies (default 200)
	GET /stats/volume          ?hours= hourly buckets (default 24)
	GET /stats/heatmap         anomaly counts by hour of day and severity
	GET /stream                Server-Sent Events feed
	GET /ws                    WebSocket feed
	GET /health, /ready, /live component health
	GET /metrics               Prometheus exposition

Errors are JSON objects of the form {"error": "..."}. Every response carries
permissive CORS headers.

# Streams

Both stream transports start with a snapshot frame and then carry one frame
per live event. SSE labels the snapshot with "event: snapshot" and sends
live events as bare data lines; WebSocket frames are JSON envelopes with a
"type" of "snapshot" or "event".

Each stream owns a bounded outbound queue. The broadcast hub only enqueues,
so a slow client never stalls delivery to others: when its queue is full
the client is dropped with ErrSlowConsumer.

# Chaos

Options.Chaos can fail /stats requests and cut open streams at a configured
probability, for exercising dashboard retry paths. Both are off by default.
*/
package api
