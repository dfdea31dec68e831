/*
Package client is a Go client for the flowpulse HTTP API.

It wraps the JSON routes with typed methods and follows the Server-Sent
Events stream with Tail:

	c, err := client.NewClient("localhost:4000")
	if err != nil {
		return err
	}
	defer c.Close()

	err = c.Tail(ctx, nil, func(evt types.Event) error {
		fmt.Println(evt.ID, evt.Type)
		return nil
	})

Non-2xx responses are returned as *APIError carrying the server's error
message.
*/
package client
