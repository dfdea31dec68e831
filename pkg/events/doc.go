/*
Package events fans workflow events out to live subscriber streams.

A Hub keeps a registry of Subscriptions, each wrapping a transport Channel
(SSE response, WebSocket connection, test double). Broadcast serializes an
event once and writes it to every registered channel:

	channel closed or not writable   -> removed, no write attempted
	Write returns an error           -> removed
	otherwise                        -> delivered

One bad channel never stops delivery to the rest. Broadcast copies the
registry before iterating, so Unsubscribe may run at any time, including
from inside a Write.

# Backfill handshake

New dashboard clients need their initial snapshot before any live event.
SubscribePending registers a channel that buffers live events instead of
writing them. The caller then writes the snapshot with Send and calls
Activate with the store sequence the snapshot was taken at; buffered
events newer than that sequence are flushed in order and the subscription
goes live. Events already covered by the snapshot are skipped, so a
client sees neither gaps nor duplicates.
*/
package events
