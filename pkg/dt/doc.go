// Package dt provides types, interfaces, and helpers for working with the
// Disruptive Technologies REST API.
//
// # Overview
//
// The dt package defines the domain types (Project, Device, Organization,
// Role, Event) and the interfaces for resource-oriented clients. A concrete
// implementation is provided by the dtclient package, which wires
// configuration, credentials, and transport.
//
//	cli, err := dtclient.NewFromEnv(ctx)
//	if err != nil { log.Fatal(err) }
//
//	devices, err := cli.Devices().List(ctx, "my-project", nil)
//
// # Events
//
// Events decode into a closed set of payload types. Switch on the concrete
// type of Event.Data:
//
//	switch data := event.Data.(type) {
//	case *dt.Temperature:
//	  fmt.Println(data.Celsius)
//	case *dt.Touch:
//	  fmt.Println("touched at", data.UpdateTime)
//	}
//
// Unknown event types decode to *UnknownData carrying the raw payload.
//
// # Errors
//
// Failed calls return *Error. Its Kind places it in a fixed taxonomy and the
// raw response body is kept for inspection:
//
//	if dt.IsNotFound(err) { ... }
//	if errors.Is(err, dt.ErrTooManyRequests) { ... }
//
// # Per-call options
//
// Timeout, retry ceiling, and credential can be overridden for one call
// without touching the client defaults:
//
//	ctx = dt.WithCallOptions(ctx, &dt.CallOptions{MaxRetries: 1})
package dt
