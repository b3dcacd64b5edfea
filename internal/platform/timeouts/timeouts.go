// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// JobPoll is the default interval between job queue polls.
const JobPoll = 2 * time.Second

// StoreOp caps a single storage operation issued outside a batch.
const StoreOp = 5 * time.Second

// Shutdown limits how long a server waits for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second
