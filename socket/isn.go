package socket

import (
	"crypto/rand"
	"encoding/binary"
	"net"

	"golang.org/x/crypto/blake2b"

	"github.com/microtcp/microtcp/seq"
)

// isnGenerator produces initial sequence numbers keyed off the connection
// tuple and a per-generator counter, so that two connections between the
// same pair of addresses do not reuse an ISN within the same secret epoch.
type isnGenerator struct {
	secret  [32]byte
	counter uint64
}

func newISNGenerator() (*isnGenerator, error) {
	g := &isnGenerator{}
	if _, err := rand.Read(g.secret[:]); err != nil {
		return nil, err
	}
	return g, nil
}

// Generate derives an ISN from the 4-tuple and the generator's counter
// using a keyed BLAKE2b hash, folding the 256-bit digest down to 32 bits.
// Each call advances the counter.
func (g *isnGenerator) Generate(local, remote *net.UDPAddr) (seq.Value, error) {
	h, err := blake2b.New256(g.secret[:])
	if err != nil {
		return 0, err
	}
	h.Write([]byte(local.IP.String()))
	var lport, rport [2]byte
	binary.LittleEndian.PutUint16(lport[:], uint16(local.Port))
	binary.LittleEndian.PutUint16(rport[:], uint16(remote.Port))
	h.Write(lport[:])
	h.Write([]byte(remote.IP.String()))
	h.Write(rport[:])
	var ctr [8]byte
	binary.LittleEndian.PutUint64(ctr[:], g.counter)
	g.counter++
	h.Write(ctr[:])
	sum := h.Sum(nil)
	return seq.Value(binary.LittleEndian.Uint32(sum[:4])), nil
}
