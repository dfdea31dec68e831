/*
Package simulation runs the loop that keeps the event history moving.

The Loop is the only writer to the store. Each cycle waits a delay drawn
uniformly from [MinInterval, MaxInterval], generates an event, appends it
and broadcasts the stored copy, so subscribers see the sequence number the
store assigned:

	loop, err := simulation.NewLoop(gen, store, hub, simulation.Config{
		MinInterval: 10 * time.Second,
		MaxInterval: 20 * time.Second,
	})
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Stop()

Timestamps never go backwards even if the wall clock does; an event older
than its predecessor is clamped to the previous timestamp.

Step runs one cycle synchronously and is what tests use in place of the
timer.
*/
package simulation
