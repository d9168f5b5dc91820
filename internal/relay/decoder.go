package relay

import "unicode/utf8"

// Decoder converts raw backend chunks to text incrementally. A multi-byte
// character split across two network chunks is held back until its trailing
// bytes arrive, so the emitted text never contains a torn sequence.
type Decoder struct {
	pending []byte
}

// NewDecoder creates an incremental chunk decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode appends the chunk to any held-back bytes and returns the longest
// prefix that ends on a complete rune boundary. The remainder is buffered
// for the next call.
func (d *Decoder) Decode(chunk []byte) string {
	buf := append(d.pending, chunk...)

	cut := len(buf)
	// A rune is at most utf8.UTFMax bytes, so only the last three bytes can
	// begin an incomplete sequence.
	for i := len(buf) - 1; i >= 0 && len(buf)-i < utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}

	text := string(buf[:cut])
	d.pending = append([]byte(nil), buf[cut:]...)
	return text
}

// Pending reports whether bytes of an incomplete sequence are held back. At
// end of stream a pending tail is a truncated character and is discarded.
func (d *Decoder) Pending() bool {
	return len(d.pending) > 0
}
