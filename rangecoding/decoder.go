package rangecoding

import "github.com/thesyncim/opuscore/util"

// Decoder is the range decoder of RFC 6716 Section 4.1.
//
// val holds the distance from the top of the current interval rather than
// from the bottom, which is why the decoding arithmetic mirrors the encoder
// with ft-relative terms.
type Decoder struct {
	buf        []byte
	storage    uint32
	offs       uint32
	endOffs    uint32
	endWindow  uint32
	nendBits   int
	nbitsTotal int
	rng        uint32
	val        uint32
	ext        uint32 // scale of the last DecodeSymbol/DecodeBin
	rem        int
	invalid    bool
}

// Init resets the decoder to read buf.
func (d *Decoder) Init(buf []byte) {
	*d = Decoder{
		buf:        buf,
		storage:    uint32(len(buf)),
		nbitsTotal: EC_CODE_BITS + 1 - ((EC_CODE_BITS-EC_CODE_EXTRA)/EC_SYM_BITS)*EC_SYM_BITS,
		rng:        1 << EC_CODE_EXTRA,
	}
	d.rem = d.readByte()
	d.val = d.rng - 1 - uint32(d.rem>>(EC_SYM_BITS-EC_CODE_EXTRA))
	d.normalize()
}

func (d *Decoder) readByte() int {
	if d.offs < d.storage {
		b := d.buf[d.offs]
		d.offs++
		return int(b)
	}
	return 0
}

func (d *Decoder) readByteFromEnd() uint32 {
	if d.endOffs < d.storage {
		d.endOffs++
		return uint32(d.buf[d.storage-d.endOffs])
	}
	return 0
}

func (d *Decoder) normalize() {
	for d.rng <= EC_CODE_BOT {
		d.nbitsTotal += EC_SYM_BITS
		d.rng <<= EC_SYM_BITS
		sym := d.rem
		d.rem = d.readByte()
		sym = (sym<<EC_SYM_BITS | d.rem) >> (EC_SYM_BITS - EC_CODE_EXTRA)
		d.val = ((d.val << EC_SYM_BITS) + uint32(EC_SYM_MAX&^sym)) & (EC_CODE_TOP - 1)
	}
}

// DecodeSymbol returns the cumulative frequency of the next symbol in
// [0, ft). The caller maps it to a symbol and must then call Update.
func (d *Decoder) DecodeSymbol(ft uint32) uint32 {
	d.ext = d.rng / ft
	s := d.val / d.ext
	return ft - min(s+1, ft)
}

// DecodeBin is DecodeSymbol with ft = 1<<bits.
func (d *Decoder) DecodeBin(bits uint) uint32 {
	d.ext = d.rng >> bits
	s := d.val / d.ext
	ft := uint32(1) << bits
	return ft - min(s+1, ft)
}

// Update consumes the symbol [fl, fh) located by DecodeSymbol or DecodeBin.
func (d *Decoder) Update(fl, fh, ft uint32) {
	s := d.ext * (ft - fh)
	d.val -= s
	if fl > 0 {
		d.rng = d.ext * (fh - fl)
	} else {
		d.rng -= s
	}
	d.normalize()
}

// DecodeBit decodes one bit whose probability of being 1 is 1/(1<<logp).
func (d *Decoder) DecodeBit(logp uint) int {
	r := d.rng
	s := r >> logp
	bit := 0
	if d.val < s {
		bit = 1
		d.rng = s
	} else {
		d.val -= s
		d.rng = r - s
	}
	d.normalize()
	return bit
}

// DecodeICDF decodes a symbol coded with EncodeICDF.
func (d *Decoder) DecodeICDF(icdf []uint8, ftb uint) int {
	s := d.rng
	r := s >> ftb
	k := -1
	var t uint32
	for {
		k++
		t = s
		s = r * uint32(icdf[k])
		if d.val >= s {
			break
		}
	}
	d.val -= s
	d.rng = t - s
	d.normalize()
	return k
}

// DecodeUniform decodes a value coded with EncodeUniform. Values outside
// [0, ft) mark the stream invalid and are clamped to ft-1.
func (d *Decoder) DecodeUniform(ft uint64) uint64 {
	ft--
	ftb := util.ILog64(ft)
	if ftb > EC_UINT_BITS {
		ftb -= EC_UINT_BITS
		ft1 := uint32(ft>>uint(ftb)) + 1
		s := d.DecodeSymbol(ft1)
		d.Update(s, s+1, ft1)
		t := uint64(s)<<uint(ftb) | d.decodeWideRaw(ftb)
		if t <= ft {
			return t
		}
		d.invalid = true
		return ft
	}
	ft32 := uint32(ft) + 1
	s := d.DecodeSymbol(ft32)
	d.Update(s, s+1, ft32)
	return uint64(s)
}

func (d *Decoder) decodeWideRaw(bits int) uint64 {
	var v uint64
	shift := 0
	for bits > 0 {
		n := min(bits, 16)
		v |= uint64(d.DecodeRawBits(uint(n))) << uint(shift)
		shift += n
		bits -= n
	}
	return v
}

// DecodeRawBits reads 1..24 raw bits from the end of the buffer.
func (d *Decoder) DecodeRawBits(bits uint) uint32 {
	if bits == 0 {
		return 0
	}
	window := d.endWindow
	available := d.nendBits
	if available < int(bits) {
		for available <= EC_WINDOW_SIZE-EC_SYM_BITS {
			window |= d.readByteFromEnd() << uint(available)
			available += EC_SYM_BITS
		}
	}
	v := window & (1<<bits - 1)
	d.endWindow = window >> bits
	d.nendBits = available - int(bits)
	d.nbitsTotal += int(bits)
	return v
}

// Tell returns the number of whole bits consumed so far, rounded up.
func (d *Decoder) Tell() int {
	return d.nbitsTotal - util.ILog(d.rng)
}

// TellFrac returns the bits consumed so far in 1/8 bit units.
func (d *Decoder) TellFrac() int {
	return tellFrac(d.nbitsTotal, d.rng)
}

// StorageBits returns the size of the frame in bits.
func (d *Decoder) StorageBits() int { return int(d.storage) * 8 }

// Err returns ErrCorruptStream when the decoder has read past the end of
// the frame or decoded an out-of-range value. Tell may legitimately exceed
// the storage by one bit: the termination of a compacted frame can drop the
// final bit of the interval.
func (d *Decoder) Err() error {
	if d.invalid || d.Tell() > d.StorageBits()+1 {
		return ErrCorruptStream
	}
	return nil
}

// MarkInvalid flags the stream as corrupt. Callers use it when a decoded
// value fails a semantic check.
func (d *Decoder) MarkInvalid() { d.invalid = true }
