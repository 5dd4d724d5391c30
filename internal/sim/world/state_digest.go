package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes everything a frame observes. Identical config and seed
// produce an identical digest stream.
func (w *World) stateDigest(kind FrameKind) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.seq)
	digestWriteU64(h, &tmp, w.tick)
	h.Write([]byte(kind))
	h.Write([]byte{0})

	pos := w.agent.Pos()
	digestWriteI64(h, &tmp, int64(pos.X))
	digestWriteI64(h, &tmp, int64(pos.Y))
	payload, _ := w.agent.Payload()
	h.Write([]byte(payload))
	h.Write([]byte{0})

	digestWriteU64(h, &tmp, uint64(len(w.items)))
	for i, it := range w.items {
		h.Write([]byte(it.ID))
		h.Write([]byte{0})
		h.Write([]byte(it.Category))
		h.Write([]byte{0})
		digestWriteI64(h, &tmp, int64(it.Pos.X))
		digestWriteI64(h, &tmp, int64(it.Pos.Y))
		h.Write([]byte{boolByte(w.remaining[i])})
	}

	digestWriteU64(h, &tmp, uint64(len(w.queue)))
	for _, t := range w.queue {
		h.Write([]byte(t.ID))
		h.Write([]byte{0})
		h.Write([]byte(t.Status))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
