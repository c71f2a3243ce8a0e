package socket

// Stats is a point-in-time snapshot of a socket's traffic counters.
type Stats struct {
	PacketsSent     uint64
	BytesSent       uint64
	PacketsReceived uint64
	BytesReceived   uint64
	PacketsLost     uint64
	BytesLost       uint64
}

type counters struct {
	packetsSent     uint64
	bytesSent       uint64
	packetsReceived uint64
	bytesReceived   uint64
	packetsLost     uint64
	bytesLost       uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		PacketsSent:     c.packetsSent,
		BytesSent:       c.bytesSent,
		PacketsReceived: c.packetsReceived,
		BytesReceived:   c.bytesReceived,
		PacketsLost:     c.packetsLost,
		BytesLost:       c.bytesLost,
	}
}
