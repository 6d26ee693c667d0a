package qstp

// MeshTransport carries sealed frames between endpoints, addressed by
// mesh topic. The protocol assumes nothing about delivery beyond
// per-topic FIFO ordering; reordering and loss surface as replay or
// watermark errors at the receiving tunnel.
type MeshTransport interface {
	Publish(frame *Frame) error
	TryRecv(topic string) *Frame
}

// InMemoryMesh is a per-topic FIFO queue transport for tests and
// single-process simulations. Not safe for concurrent use.
type InMemoryMesh struct {
	queues map[string][]*Frame
}

// NewInMemoryMesh creates an empty mesh.
func NewInMemoryMesh() *InMemoryMesh {
	return &InMemoryMesh{queues: make(map[string][]*Frame)}
}

// Publish appends the frame to its topic queue.
func (m *InMemoryMesh) Publish(frame *Frame) error {
	m.queues[frame.Topic] = append(m.queues[frame.Topic], frame)
	return nil
}

// TryRecv pops the oldest frame on topic, or returns nil when the queue
// is empty.
func (m *InMemoryMesh) TryRecv(topic string) *Frame {
	queue := m.queues[topic]
	if len(queue) == 0 {
		return nil
	}
	frame := queue[0]
	m.queues[topic] = queue[1:]
	return frame
}

// Len returns the number of queued frames on topic.
func (m *InMemoryMesh) Len(topic string) int {
	return len(m.queues[topic])
}
