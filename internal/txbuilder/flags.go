package txbuilder

import (
	"fmt"
	"sort"

	"gemwallet/internal/protocol"
	"gemwallet/pkg/errno"
)

// tfFullyCanonicalSig 所有交易类型通用
const tfFullyCanonicalSig uint32 = 0x80000000

var flagTables = map[string]map[string]uint32{
	TypePayment: {
		"tfNoDirectRipple": 0x00010000,
		"tfPartialPayment": 0x00020000,
		"tfLimitQuality":   0x00040000,
	},
	TypeTrustSet: {
		"tfSetfAuth":      0x00010000,
		"tfSetNoRipple":   0x00020000,
		"tfClearNoRipple": 0x00040000,
		"tfSetFreeze":     0x00100000,
		"tfClearFreeze":   0x00200000,
	},
	TypeNFTokenMint: {
		"tfBurnable":     0x00000001,
		"tfOnlyXRP":      0x00000002,
		"tfTrustLine":    0x00000004,
		"tfTransferable": 0x00000008,
	},
	TypeNFTokenCreateOffer: {
		"tfSellNFToken": 0x00000001,
	},
	TypeAccountSet: {
		"tfRequireDestTag":  0x00010000,
		"tfOptionalDestTag": 0x00020000,
		"tfRequireAuth":     0x00040000,
		"tfOptionalAuth":    0x00080000,
		"tfDisallowXRP":     0x00100000,
		"tfAllowXRP":        0x00200000,
	},
	TypeOfferCreate: {
		"tfPassive":           0x00010000,
		"tfImmediateOrCancel": 0x00020000,
		"tfFillOrKill":        0x00040000,
		"tfSell":              0x00080000,
	},
}

func flagValue(kind, name string) (uint32, bool) {
	if name == "tfFullyCanonicalSig" {
		return tfFullyCanonicalSig, true
	}
	v, ok := flagTables[kind][name]
	return v, ok
}

// NormalizeFlags 命名 flags 转 bitmask，数值原样返回。
// ok=false 表示没有给 flags，交易里不写这个字段
func NormalizeFlags(kind string, f *protocol.Flags) (mask uint32, ok bool, err error) {
	if f == nil || f.IsEmpty() {
		return 0, false, nil
	}
	if v, isMask := f.Bitmask(); isMask {
		return v, true, nil
	}
	for name, on := range f.Named() {
		bit, known := flagValue(kind, name)
		if !known {
			return 0, false, errno.ErrUnknownFlag.WithMessage(fmt.Sprintf("unknown %s flag %q", kind, name))
		}
		if on {
			mask |= bit
		}
	}
	return mask, true, nil
}

// DescribeFlags 把 bitmask 还原成 flag 名 (按字母排序)，用于确认页展示。
// 表里没有的位以 0x 形式列出
func DescribeFlags(kind string, mask uint32) []string {
	names := []string{}
	rest := mask
	if rest&tfFullyCanonicalSig != 0 {
		names = append(names, "tfFullyCanonicalSig")
		rest &^= tfFullyCanonicalSig
	}
	for name, bit := range flagTables[kind] {
		if rest&bit == bit {
			names = append(names, name)
			rest &^= bit
		}
	}
	sort.Strings(names)
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%08X", rest))
	}
	return names
}
