package statestore

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/precinct/internal/domain/model"
)

// stateDigest folds county states into an order-sensitive xxhash. Callers
// must feed states in a canonical (sorted by FIPS) order for stable output.
type stateDigest struct {
	h   *xxhash.Digest
	buf [8]byte
}

func newStateDigest() *stateDigest {
	return &stateDigest{h: xxhash.New()}
}

func (d *stateDigest) add(st model.CountyState) {
	_, _ = d.h.WriteString(st.FIPS)
	d.writeInt(st.DemVotes)
	d.writeInt(st.GopVotes)
	d.writeInt(st.OtherVotes)
	d.writeInt(st.TotalVotes)
	d.writeFloat(st.ReportingPercent)
	d.writeFloat(st.SourceTimestamp)
	var flags byte
	if st.FullyReported {
		flags |= 1
	}
	if st.ManualOverride {
		flags |= 2
	}
	_, _ = d.h.Write([]byte{flags})
}

func (d *stateDigest) writeInt(v int64) {
	binary.LittleEndian.PutUint64(d.buf[:], uint64(v))
	_, _ = d.h.Write(d.buf[:])
}

func (d *stateDigest) writeFloat(v float64) {
	binary.LittleEndian.PutUint64(d.buf[:], math.Float64bits(v))
	_, _ = d.h.Write(d.buf[:])
}

func (d *stateDigest) sum() uint64 {
	return d.h.Sum64()
}
