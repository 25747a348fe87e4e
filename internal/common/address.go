package common

// DecodeAddressBytes decodes a CIP-19 binary Cardano address: the top
// nibble of the header byte selects the address kind (base/pointer/
// enterprise/reward/Byron), the bottom nibble the network tag. This is
// the same header scheme every Cardano wallet/indexer/explorer decodes
// against.
func DecodeAddressBytes(raw []byte) (Address, error) {
	if len(raw) == 0 {
		return Address{}, nil
	}
	header := raw[0]
	addrType := header >> 4
	network := NetworkId(header & 0x0f)

	if addrType == 8 {
		return Address{IsByron: true, ByronBytes: raw}, nil
	}

	body := raw[1:]
	credFromBytes := func(b []byte, isScript bool) *StakeCredential {
		h, err := NewHash28(b)
		if err != nil {
			return nil
		}
		if isScript {
			c := NewScriptCredential(h)
			return &c
		}
		c := NewKeyCredential(h)
		return &c
	}

	switch addrType {
	case 0, 1, 2, 3: // base address: payment cred + staking cred, 28 bytes each
		if len(body) < 56 {
			return Address{}, nil
		}
		payment := credFromBytes(body[0:28], addrType == 1 || addrType == 3)
		staking := credFromBytes(body[28:56], addrType == 2 || addrType == 3)
		return Address{Network: network, Payment: payment, Staking: staking}, nil

	case 4, 5: // pointer address: payment cred + variable-length pointer
		if len(body) < 28 {
			return Address{}, nil
		}
		payment := credFromBytes(body[0:28], addrType == 5)
		ptr, _ := decodePointer(body[28:])
		return Address{Network: network, Payment: payment, Pointer: ptr}, nil

	case 6, 7: // enterprise address: payment cred only
		if len(body) < 28 {
			return Address{}, nil
		}
		payment := credFromBytes(body[0:28], addrType == 7)
		return Address{Network: network, Payment: payment}, nil

	case 14, 15: // reward/stake address: staking cred only
		if len(body) < 28 {
			return Address{}, nil
		}
		staking := credFromBytes(body[0:28], addrType == 15)
		return Address{Network: network, Staking: staking}, nil

	default:
		return Address{Network: network}, nil
	}
}

// decodePointer reads the three base-128 varints (slot, tx index, cert
// index) that make up a pointer address's variable-length tail.
func decodePointer(b []byte) (*ChainPointer, []byte) {
	slot, rest := readVarint(b)
	txIdx, rest2 := readVarint(rest)
	certIdx, rest3 := readVarint(rest2)
	return &ChainPointer{Slot: slot, TxIndex: uint32(txIdx), CertIndex: uint32(certIdx)}, rest3
}

func readVarint(b []byte) (uint64, []byte) {
	var v uint64
	for i, by := range b {
		v = v<<7 | uint64(by&0x7f)
		if by&0x80 == 0 {
			return v, b[i+1:]
		}
	}
	return v, nil
}
