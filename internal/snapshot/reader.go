// Package snapshot implements the bootstrapper of spec.md §4.11: a
// single-pass, constant-memory walk of a multi-GB CBOR EpochState blob
// that emits per-domain bootstrap entities instead of materialising the
// whole structure.
//
// Grounded on the teacher's (blinklabs-io/shai) internal/storage
// Utxo.UnmarshalCBOR raw-message-unwrap idiom for decoding one UTXO
// entry's key/value pair. That idiom only works once a single entry's
// bytes are already isolated; scanValue below is this package's own
// minimal recursive-descent CBOR extent scanner, built to isolate exactly
// one entry's bytes at a time from a live stream without materialising
// its siblings, since neither gouroboros/cbor nor fxamacker/cbor/v2
// expose a "peek the next item's byte length without decoding its
// contents" primitive on their own. Once an item's bytes are isolated, a
// whole-buffer decoder materialises them: fxamacker/cbor/v2's Unmarshal
// for this package's own wire structs (entities.go), and gouroboros/cbor's
// Decode plus ledger.NewTransactionOutputFromCbor for UTXO entries
// (utxo.go). Every stream-position assumption stays local to this file.
package snapshot

import (
	"bufio"
	"fmt"
)

// CBOR major types, per RFC 8949 §3.
const (
	majorUnsigned byte = 0
	majorNegative byte = 1
	majorBytes    byte = 2
	majorText     byte = 3
	majorArray    byte = 4
	majorMap      byte = 5
	majorTag      byte = 6
	majorSimple   byte = 7
)

// collectionHeader describes a CBOR array or map's length encoding.
// Definite collections carry their element (or pair) count; indefinite
// ones are closed by a break byte (0xff) instead, discovered by calling
// atBreak before each element.
type collectionHeader struct {
	Definite bool
	Count    uint64
}

// peekArrayHeader reads a CBOR array header from r.
func peekArrayHeader(r *bufio.Reader) (collectionHeader, error) {
	return readCollectionHeader(r, majorArray)
}

// peekMapHeader reads a CBOR map header from r. Count is the number of
// key/value pairs, not the number of raw elements.
func peekMapHeader(r *bufio.Reader) (collectionHeader, error) {
	return readCollectionHeader(r, majorMap)
}

func readCollectionHeader(r *bufio.Reader, want byte) (collectionHeader, error) {
	b, err := r.ReadByte()
	if err != nil {
		return collectionHeader{}, err
	}
	major := b >> 5
	info := b & 0x1f
	if major != want {
		return collectionHeader{}, fmt.Errorf("cbor: expected major type %d, got %d", want, major)
	}
	if info == 31 {
		return collectionHeader{Definite: false}, nil
	}
	n, err := readArgument(r, info)
	if err != nil {
		return collectionHeader{}, err
	}
	return collectionHeader{Definite: true, Count: n}, nil
}

// readArgument reads a CBOR initial byte's argument, given its low 5 bits.
func readArgument(r *bufio.Reader, info byte) (uint64, error) {
	switch {
	case info < 24:
		return uint64(info), nil
	case info == 24:
		b, err := r.ReadByte()
		return uint64(b), err
	case info == 25:
		return readBigEndian(r, 2)
	case info == 26:
		return readBigEndian(r, 4)
	case info == 27:
		return readBigEndian(r, 8)
	default:
		return 0, fmt.Errorf("cbor: unsupported additional info %d", info)
	}
}

func readBigEndian(r *bufio.Reader, n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// atBreak reports whether the next byte is CBOR's indefinite-length break
// code, consuming it if so.
func atBreak(r *bufio.Reader) (bool, error) {
	b, err := r.Peek(1)
	if err != nil {
		return false, err
	}
	if b[0] == 0xff {
		_, _ = r.ReadByte()
		return true, nil
	}
	return false, nil
}

// scanValue reads exactly one complete CBOR data item from r and returns
// its raw encoded bytes, recursing into arrays/maps/tags/indefinite
// strings as needed to find the item's true extent. This is the single
// primitive every higher-level decode in this package builds on: once an
// item's bytes are isolated this way, they are handed to a whole-buffer
// decoder (fxamacker/cbor/v2's Unmarshal, gouroboros/cbor.Decode, or a
// dedicated ledger constructor) to
// materialise the Go value, never decoded by this scanner itself.
func scanValue(r *bufio.Reader) ([]byte, error) {
	var out []byte
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	out = append(out, b)
	major := b >> 5
	info := b & 0x1f

	switch major {
	case majorUnsigned, majorNegative:
		extra, err := readRawArgumentBytes(r, info)
		if err != nil {
			return nil, err
		}
		out = append(out, extra...)

	case majorBytes, majorText:
		if info == 31 {
			// Indefinite-length string: a sequence of definite-length
			// chunks of the same major type, terminated by a break.
			for {
				if brk, bb, err := scanBreakOrChunk(r); err != nil {
					return nil, err
				} else if brk {
					out = append(out, bb...)
					break
				} else {
					out = append(out, bb...)
				}
			}
			break
		}
		extra, err := readRawArgumentBytes(r, info)
		if err != nil {
			return nil, err
		}
		out = append(out, extra...)
		n, err := argumentValue(info, extra)
		if err != nil {
			return nil, err
		}
		body := make([]byte, n)
		if _, err := readFull(r, body); err != nil {
			return nil, err
		}
		out = append(out, body...)

	case majorArray:
		extra, err := readRawArgumentBytes(r, info)
		if err != nil {
			return nil, err
		}
		out = append(out, extra...)
		if info == 31 {
			for {
				brk, err := atBreak(r)
				if err != nil {
					return nil, err
				}
				if brk {
					out = append(out, 0xff)
					break
				}
				child, err := scanValue(r)
				if err != nil {
					return nil, err
				}
				out = append(out, child...)
			}
			break
		}
		n, err := argumentValue(info, extra)
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < n; i++ {
			child, err := scanValue(r)
			if err != nil {
				return nil, err
			}
			out = append(out, child...)
		}

	case majorMap:
		extra, err := readRawArgumentBytes(r, info)
		if err != nil {
			return nil, err
		}
		out = append(out, extra...)
		if info == 31 {
			for {
				brk, err := atBreak(r)
				if err != nil {
					return nil, err
				}
				if brk {
					out = append(out, 0xff)
					break
				}
				k, err := scanValue(r)
				if err != nil {
					return nil, err
				}
				v, err := scanValue(r)
				if err != nil {
					return nil, err
				}
				out = append(out, k...)
				out = append(out, v...)
			}
			break
		}
		n, err := argumentValue(info, extra)
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < n; i++ {
			k, err := scanValue(r)
			if err != nil {
				return nil, err
			}
			v, err := scanValue(r)
			if err != nil {
				return nil, err
			}
			out = append(out, k...)
			out = append(out, v...)
		}

	case majorTag:
		extra, err := readRawArgumentBytes(r, info)
		if err != nil {
			return nil, err
		}
		out = append(out, extra...)
		child, err := scanValue(r)
		if err != nil {
			return nil, err
		}
		out = append(out, child...)

	case majorSimple:
		switch {
		case info < 20, info == 20, info == 21, info == 22, info == 23:
			// No further bytes (false/true/null/undefined/unassigned).
		case info == 24:
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		case info == 25:
			extra, err := readN(r, 2)
			if err != nil {
				return nil, err
			}
			out = append(out, extra...)
		case info == 26:
			extra, err := readN(r, 4)
			if err != nil {
				return nil, err
			}
			out = append(out, extra...)
		case info == 27:
			extra, err := readN(r, 8)
			if err != nil {
				return nil, err
			}
			out = append(out, extra...)
		default:
			return nil, fmt.Errorf("cbor: unsupported simple value info %d", info)
		}

	default:
		return nil, fmt.Errorf("cbor: unknown major type %d", major)
	}

	return out, nil
}

// scanBreakOrChunk reads one chunk of an indefinite-length byte/text
// string, or the terminating break. brk is true only in the break case,
// in which case the returned bytes are just the break marker.
func scanBreakOrChunk(r *bufio.Reader) (brk bool, raw []byte, err error) {
	peeked, err := r.Peek(1)
	if err != nil {
		return false, nil, err
	}
	if peeked[0] == 0xff {
		_, _ = r.ReadByte()
		return true, []byte{0xff}, nil
	}
	chunk, err := scanValue(r)
	return false, chunk, err
}

// readRawArgumentBytes reads the bytes following an initial byte that
// encode its argument (0 bytes for info < 24, 1/2/4/8 for info
// 24..27), returning them raw (undecoded) so the caller can both append
// them to the item's raw form and, where needed, decode them itself.
func readRawArgumentBytes(r *bufio.Reader, info byte) ([]byte, error) {
	switch {
	case info < 24, info == 31:
		return nil, nil
	case info == 24:
		return readN(r, 1)
	case info == 25:
		return readN(r, 2)
	case info == 26:
		return readN(r, 4)
	case info == 27:
		return readN(r, 8)
	default:
		return nil, fmt.Errorf("cbor: unsupported additional info %d", info)
	}
}

// argumentValue decodes an initial byte's argument given its low 5 bits
// and the raw bytes readRawArgumentBytes already consumed for it.
func argumentValue(info byte, extra []byte) (uint64, error) {
	if info < 24 {
		return uint64(info), nil
	}
	var v uint64
	for _, b := range extra {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

func readN(r *bufio.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
