/*
Package query serves the read side of flowpulse: overview stats, windowed
timelines, anomaly lists, volume buckets, heatmap cells and the combined
snapshot used to backfill new stream subscribers.

Every multi-value view is computed inside a single storage.Store.View call,
so a snapshot never mixes an overview from one history with a timeline from
another.

# Subscribing

OnSubscribe registers a channel with the hub in pending mode, writes the
snapshot frame, then activates the subscription. Live events published
while the snapshot was being built are held back and flushed afterwards
unless the snapshot already covers them:

	unsubscribe, err := facade.OnSubscribe(ch)
	if err != nil {
		return err
	}
	defer unsubscribe()
*/
package query
