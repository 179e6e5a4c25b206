// Package transport provides the shared datagram poller that drives RTP
// sessions running in callback mode.
//
// # Poller
//
// A Poller owns one read loop per registered socket. Each loop blocks in
// ReadFrom with a short deadline so that removal and shutdown are noticed
// promptly, and hands every datagram to the registration's handler on the
// loop's goroutine:
//
//	poller := transport.NewPoller(transport.DefaultPollInterval)
//	defer poller.Close()
//
//	reg, err := poller.Add(conn, func(data []byte, from net.Addr) {
//	    // data is only valid for the duration of the call
//	})
//
// Remove waits for the read loop to exit, so once it returns the handler
// will not run again and the socket may be closed:
//
//	poller.Remove(reg)
//	conn.Close()
//
// Remove must not be called from inside the handler it stops.
//
// # Errors
//
// Timeouts are the loop's idle tick and are not reported. A closed socket
// ends the loop. Other read errors are logged and the loop continues.
package transport
