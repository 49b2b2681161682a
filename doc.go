// Package ring provides a Go client library for the Ring doorbell cloud API.
//
// The client authenticates an account, lists its chimes and doorbots, reads
// the ding/motion event history and downloads event recordings.
//
// # Authentication
//
// A Client is created with the account credentials and starts
// unauthenticated. Authenticate opens a session and keeps its token for
// every later call:
//
//	client := ring.NewClient("user@example.com", "password")
//	session, err := client.Authenticate(ctx, nil) // nil = ring.DefaultAuthOptions()
//
// To describe the calling device differently, start from the defaults:
//
//	opts := ring.DefaultAuthOptions()
//	opts.HardwareID = "3f1c1e52-2c8b-4f5e-8d5a-2b9c7f0e6a11"
//	opts.DeviceName = "garage-pi"
//	session, err := client.Authenticate(ctx, &opts)
//
// # Basic Usage
//
// List devices:
//
//	devices, err := client.GetRingDevices(ctx)
//	for _, d := range devices.Doorbots {
//	    fmt.Printf("Doorbot: %s (%d)\n", d.Description, d.ID)
//	}
//
// Read the history and save a recording:
//
//	events, err := client.GetDoorbotsHistory(ctx)
//	if len(events) > 0 && events[0].HasRecording() {
//	    err = client.SaveEventRecording(ctx, events[0], "/tmp/latest.mp4")
//	}
//
// GetDoorbotHistoryRecording returns the raw stream instead; the caller closes it.
//
// # Testing
//
// Every HTTP exchange goes through a Doer. Supply your own with WithDoer to
// run without a network, or use SetRequestOverride to substitute the next
// exchange of a single operation.
//
// # Error Handling
//
// Check for specific error types:
//
//	devices, err := client.GetRingDevices(ctx)
//	if err != nil {
//	    if ring.IsNotAuthenticated(err) {
//	        // Authenticate has not succeeded yet
//	    } else if ring.IsUnauthorized(err) {
//	        // Credentials or token rejected
//	    }
//	}
//
// The client never retries a request.
package ring
