package rangecoding

import "github.com/thesyncim/opuscore/util"

// Encoder is the range encoder of RFC 6716 Section 5.1.
// It is the symmetric inverse of Decoder.
type Encoder struct {
	buf        []byte
	storage    uint32 // buffer capacity in bytes
	offs       uint32 // range coder bytes written from the front
	endOffs    uint32 // raw bytes written from the back
	endWindow  uint32 // raw bits not yet flushed
	nendBits   int
	nbitsTotal int
	rng        uint32
	val        uint32 // low end of the interval
	rem        int    // buffered byte awaiting carry resolution (-1 = none)
	ext        uint32 // pending 0xFF bytes
	overflow   bool
	fixed      bool // Done returns exactly storage bytes
}

// Init resets the encoder to write into buf. The capacity of buf bounds the
// frame size; Done fails with ErrPacketTooLarge when it is exceeded.
func (e *Encoder) Init(buf []byte) {
	*e = Encoder{
		buf:        buf,
		storage:    uint32(len(buf)),
		nbitsTotal: EC_CODE_BITS + 1,
		rng:        EC_CODE_TOP,
		rem:        -1,
	}
}

// Shrink fixes the output to exactly size bytes. Raw bits already written
// are moved to the new end. Done zero-fills the gap between the range coded
// bytes and the raw bits.
func (e *Encoder) Shrink(size uint32) {
	if e.offs+e.endOffs > size || size > e.storage {
		e.overflow = true
		return
	}
	if e.endOffs > 0 {
		copy(e.buf[size-e.endOffs:size], e.buf[e.storage-e.endOffs:e.storage])
	}
	e.storage = size
	e.fixed = true
}

// Storage returns the current capacity in bytes.
func (e *Encoder) Storage() int { return int(e.storage) }

func (e *Encoder) carryOut(c int) {
	if c != EC_SYM_MAX {
		carry := c >> EC_SYM_BITS
		if e.rem >= 0 {
			e.writeByte(byte(e.rem + carry))
		}
		if e.ext > 0 {
			sym := byte((EC_SYM_MAX + carry) & EC_SYM_MAX)
			for ; e.ext > 0; e.ext-- {
				e.writeByte(sym)
			}
		}
		e.rem = c & EC_SYM_MAX
		return
	}
	e.ext++
}

func (e *Encoder) normalize() {
	for e.rng <= EC_CODE_BOT {
		e.carryOut(int(e.val >> EC_CODE_SHIFT))
		e.val = (e.val << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		e.rng <<= EC_SYM_BITS
		e.nbitsTotal += EC_SYM_BITS
	}
}

func (e *Encoder) writeByte(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.overflow = true
		return
	}
	e.buf[e.offs] = b
	e.offs++
}

func (e *Encoder) writeByteAtEnd(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.overflow = true
		return
	}
	e.endOffs++
	e.buf[e.storage-e.endOffs] = b
}

// EncodeSymbol narrows the interval to [fl, fh) out of a total of ft.
func (e *Encoder) EncodeSymbol(fl, fh, ft uint32) {
	r := e.rng / ft
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeBin is EncodeSymbol with ft = 1<<bits.
func (e *Encoder) EncodeBin(fl, fh uint32, bits uint) {
	r := e.rng >> bits
	ft := uint32(1) << bits
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeBit encodes one bit whose probability of being 1 is 1/(1<<logp).
func (e *Encoder) EncodeBit(bit int, logp uint) {
	s := e.rng >> logp
	r := e.rng - s
	if bit != 0 {
		e.val += r
		e.rng = s
	} else {
		e.rng = r
	}
	e.normalize()
}

// EncodeICDF encodes symbol s using an inverse CDF table with a total of
// 1<<ftb. icdf[i] is ft minus the cumulative frequency of symbols 0..i and
// the last entry is 0.
func (e *Encoder) EncodeICDF(s int, icdf []uint8, ftb uint) {
	r := e.rng >> ftb
	if s > 0 {
		e.val += e.rng - r*uint32(icdf[s-1])
		e.rng = r * uint32(icdf[s-1]-icdf[s])
	} else {
		e.rng -= r * uint32(icdf[s])
	}
	e.normalize()
}

// EncodeUniform encodes v uniformly in [0, ft). ft must be at least 2 and
// at most 1<<63. The top EC_UINT_BITS are range coded and the rest are
// written as raw bits.
func (e *Encoder) EncodeUniform(v, ft uint64) {
	ft--
	ftb := util.ILog64(ft)
	if ftb > EC_UINT_BITS {
		ftb -= EC_UINT_BITS
		ft1 := uint32(ft>>uint(ftb)) + 1
		hi := uint32(v >> uint(ftb))
		e.EncodeSymbol(hi, hi+1, ft1)
		e.encodeWideRaw(v&(uint64(1)<<uint(ftb)-1), ftb)
		return
	}
	e.EncodeSymbol(uint32(v), uint32(v)+1, uint32(ft)+1)
}

func (e *Encoder) encodeWideRaw(v uint64, bits int) {
	for bits > 0 {
		n := min(bits, 16)
		e.EncodeRawBits(uint32(v)&(1<<uint(n)-1), uint(n))
		v >>= uint(n)
		bits -= n
	}
}

// EncodeRawBits writes the low bits of v (1..24 bits) from the end of the
// buffer.
func (e *Encoder) EncodeRawBits(v uint32, bits uint) {
	if bits == 0 {
		return
	}
	window := e.endWindow
	used := e.nendBits
	if used+int(bits) > EC_WINDOW_SIZE {
		for used >= EC_SYM_BITS {
			e.writeByteAtEnd(byte(window & EC_SYM_MAX))
			window >>= EC_SYM_BITS
			used -= EC_SYM_BITS
		}
	}
	window |= (v & (1<<bits - 1)) << uint(used)
	used += int(bits)
	e.endWindow = window
	e.nendBits = used
	e.nbitsTotal += int(bits)
}

// Tell returns the number of whole bits written so far, rounded up.
func (e *Encoder) Tell() int {
	return e.nbitsTotal - util.ILog(e.rng)
}

// TellFrac returns the bits written so far in 1/8 bit units.
func (e *Encoder) TellFrac() int {
	return tellFrac(e.nbitsTotal, e.rng)
}

// Overflowed reports whether a write ran past the storage.
func (e *Encoder) Overflowed() bool { return e.overflow }

// Done flushes the coder and returns the frame bytes. Without Shrink the
// result is compacted to the bytes actually used; the raw bits stay at the
// tail so the decoder finds them from the end of whatever it is handed.
func (e *Encoder) Done() ([]byte, error) {
	l := EC_CODE_BITS - util.ILog(e.rng)
	msk := (EC_CODE_TOP - 1) >> uint(l)
	end := (e.val + msk) &^ msk
	if (end | msk) >= e.val+e.rng {
		l++
		msk >>= 1
		end = (e.val + msk) &^ msk
	}
	for l > 0 {
		e.carryOut(int(end >> EC_CODE_SHIFT))
		end = (end << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		l -= EC_SYM_BITS
	}
	if e.rem >= 0 || e.ext > 0 {
		e.carryOut(0)
	}

	window := e.endWindow
	used := e.nendBits
	for used >= EC_SYM_BITS {
		e.writeByteAtEnd(byte(window & EC_SYM_MAX))
		window >>= EC_SYM_BITS
		used -= EC_SYM_BITS
	}
	if e.overflow {
		return nil, ErrPacketTooLarge
	}

	if e.fixed {
		clear(e.buf[e.offs : e.storage-e.endOffs])
		if used > 0 {
			if e.endOffs >= e.storage {
				return nil, ErrPacketTooLarge
			}
			// The partial raw byte may share the last range coder byte.
			if e.offs+e.endOffs >= e.storage && -l < used {
				return nil, ErrPacketTooLarge
			}
			e.buf[e.storage-e.endOffs-1] |= byte(window)
		}
		return e.buf[:e.storage], nil
	}

	pad := uint32(0)
	if used > 0 {
		pad = 1
	}
	n := e.offs + pad + e.endOffs
	if n > e.storage {
		return nil, ErrPacketTooLarge
	}
	if pad == 1 {
		e.buf[e.offs] = byte(window)
	}
	if e.endOffs > 0 {
		copy(e.buf[e.offs+pad:n], e.buf[e.storage-e.endOffs:e.storage])
	}
	return e.buf[:n], nil
}

func tellFrac(nbitsTotal int, rng uint32) int {
	nbits := nbitsTotal << BITRES
	l := util.ILog(rng)
	r := rng >> uint(l-16)
	for i := 0; i < BITRES; i++ {
		r = (r * r) >> 15
		b := int(r >> 16)
		l = l<<1 | b
		r >>= uint(b)
	}
	return nbits - l
}
