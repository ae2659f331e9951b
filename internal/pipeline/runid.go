package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Run IDs are ULIDs: 26-character Crockford Base32 strings with a
// millisecond timestamp prefix, so lexical order follows creation
// order.

var (
	runIDMu sync.Mutex
	lastTS  uint64
	lastSeq uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

func newRunID() string {
	runIDMu.Lock()
	defer runIDMu.Unlock()

	ts := uint64(time.Now().UnixMilli())
	if ts == lastTS {
		lastSeq++
	} else {
		lastTS = ts
		lastSeq = 0
	}

	var b [16]byte
	// 48-bit big-endian timestamp in the first 6 bytes.
	b[0] = byte(ts >> 40)
	b[1] = byte(ts >> 32)
	b[2] = byte(ts >> 24)
	b[3] = byte(ts >> 16)
	b[4] = byte(ts >> 8)
	b[5] = byte(ts)
	rand.Read(b[6:])
	// A sequence counter in bytes 6-7 keeps IDs unique within one ms.
	binary.BigEndian.PutUint16(b[6:8], lastSeq)

	return encodeCrockford(b)
}

// encodeCrockford maps 128 bits to 26 base-32 characters, the first
// character carrying only the top 3 bits.
func encodeCrockford(b [16]byte) string {
	bitAt := func(i int) byte {
		i -= 2
		if i < 0 {
			return 0
		}
		return (b[i/8] >> (7 - i%8)) & 1
	}

	var out [26]byte
	for c := range out {
		var v byte
		for k := 0; k < 5; k++ {
			v = v<<1 | bitAt(c*5+k)
		}
		out[c] = crockford[v]
	}
	return string(out[:])
}
