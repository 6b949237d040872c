package cluster

// Transport is the message-passing substrate collective operations run
// over: point-to-point setup sends and the broadcast/gather pairs of the
// evaluator loop. A Hub-backed ChannelTransport is the only
// implementation provided (see hub.go), but a socket-based
// implementation for an actual multi-host cluster would satisfy the same
// two narrower interfaces below without changing Coordinator or the
// worker loop.
type Transport interface {
	CoordinatorSide
	WorkerSide
}

// CoordinatorSide is the set of operations rank 0 performs.
type CoordinatorSide interface {
	// NumWorkers returns the number of worker ranks (ranks 1..N).
	NumWorkers() int
	// SendTo delivers a point-to-point message to one worker rank,
	// used during setup to ship matrices and entries.
	SendTo(rank int, data []byte)
	// Broadcast delivers the same message to every worker rank and
	// blocks until all of them have received it: broadcasting x is
	// itself a synchronization barrier.
	Broadcast(data []byte)
	// GatherAll blocks until every worker has sent a contribution for
	// the current operation and returns them ordered by rank
	// (GatherAll()[0] is rank 1's contribution, etc).
	GatherAll() [][]byte
}

// WorkerSide is the set of operations a worker rank performs.
type WorkerSide interface {
	// Recv blocks until the coordinator has sent this rank a message,
	// whether by SendTo or Broadcast; both arrive through the same
	// FIFO channel, so setup messages are always consumed before the
	// first broadcast.
	Recv(rank int) []byte
	// Send delivers this rank's contribution back to the coordinator.
	Send(rank int, data []byte)
}
