// Package shortvec implements the compact-u16 length prefix used throughout
// the transaction wire format: seven bits per byte, least significant group
// first, with the high bit marking a continuation.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxEncodedLen is the number of bytes needed for math.MaxUint16.
const maxEncodedLen = 3

var (
	ErrLengthOverflow = errors.New("length exceeds compact-u16 range")
	ErrTooLong        = errors.New("compact-u16 encoding exceeds 3 bytes")
)

// EncodeLen writes length to w, returning the number of bytes written.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, errors.Wrapf(ErrLengthOverflow, "%d", length)
	}

	var buf [maxEncodedLen]byte
	n := 0
	for {
		buf[n] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			n++
			break
		}
		buf[n] |= 0x80
		n++
	}

	return w.Write(buf[:n])
}

// DecodeLen reads a length written by EncodeLen from r.
func DecodeLen(r io.Reader) (int, error) {
	var (
		value int
		b     [1]byte
	)

	for i := 0; i < maxEncodedLen; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			// A continuation bit promised another byte.
			if err == io.EOF && i > 0 {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}

		value |= int(b[0]&0x7f) << (7 * i)
		if b[0]&0x80 == 0 {
			if value > math.MaxUint16 {
				return 0, errors.Wrapf(ErrLengthOverflow, "%d", value)
			}
			return value, nil
		}
	}

	return 0, ErrTooLong
}
