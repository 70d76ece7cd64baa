package apns

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// ErrMalformedSignature is returned when a DER blob does not parse as
// SEQUENCE{INTEGER r, INTEGER s} or its components do not fit the target
// width. It indicates a corrupt key or library bug, not a transient
// condition, so callers abort the run instead of retrying.
var ErrMalformedSignature = errors.New("malformed ECDSA signature")

// derSequenceTag is the first byte of every DER-encoded SEQUENCE.
const derSequenceTag = 0x30

type ecdsaSignature struct {
	R, S *big.Int
}

// SignatureToFixedWidth converts a DER-encoded ECDSA signature to the
// fixed-width big-endian r||s concatenation APNs provider tokens require.
// Each component is left-padded with zeros to width/2 bytes.
//
// Input that does not start with the DER SEQUENCE tag is assumed to be
// fixed-width already and passed through. A false positive on that check is
// theoretically possible but accepted as a pragmatic heuristic.
func SignatureToFixedWidth(sig []byte, width int) ([]byte, error) {
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedSignature)
	}

	if sig[0] != derSequenceTag {
		if len(sig) != width {
			return nil, fmt.Errorf("%w: expected %d fixed-width bytes, got %d", ErrMalformedSignature, width, len(sig))
		}
		return sig, nil
	}

	var parsed ecdsaSignature
	rest, err := asn1.Unmarshal(sig, &parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after signature sequence", ErrMalformedSignature)
	}
	if parsed.R.Sign() < 0 || parsed.S.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative integer component", ErrMalformedSignature)
	}

	half := width / 2
	if parsed.R.BitLen() > half*8 || parsed.S.BitLen() > half*8 {
		return nil, fmt.Errorf("%w: integer component wider than %d bytes", ErrMalformedSignature, half)
	}

	// FillBytes left-pads with zeros; any DER sign-padding byte is already
	// gone after the big.Int round trip.
	out := make([]byte, width)
	parsed.R.FillBytes(out[:half])
	parsed.S.FillBytes(out[half:])
	return out, nil
}
