package wlink

import "fmt"

// FamilyCode is the one-byte chip-family tag the probe reports at attach
// (spec.md §3 "Chip descriptor").
type FamilyCode byte

// Known family codes, spec.md §4.7.
const (
	FamilyCH32V103 FamilyCode = 0x01
	FamilyCH32V203 FamilyCode = 0x02
	FamilyCH32V208 FamilyCode = 0x03
	FamilyCH32V303 FamilyCode = 0x05
	FamilyCH32V305 FamilyCode = 0x06
	FamilyCH32V307 FamilyCode = 0x07
	FamilyCH32V003 FamilyCode = 0x09
	FamilyCH32X035 FamilyCode = 0x0A
	FamilyCH32L103 FamilyCode = 0x0B
	FamilyCH32V317 FamilyCode = 0x0C
	FamilyCH32V003B FamilyCode = 0x0D
	FamilyCH32V002 FamilyCode = 0x0E
	FamilyCH570     FamilyCode = 0x49
	FamilyCH585     FamilyCode = 0x4B

	// Reserved/placeholder family codes (spec.md §9 open question): these
	// appear in probe responses but have no documented flash layout.
	// "do not guess their flash layout" — flashStart/packet/write-pack
	// sizes are left at the zero value and every capability flag is false.
	FamilyReserved0F FamilyCode = 0x0F
	FamilyReserved46 FamilyCode = 0x46
	FamilyReserved4E FamilyCode = 0x4E
	FamilyReserved86 FamilyCode = 0x86
)

func (f FamilyCode) String() string {
	if e, ok := familyTable[f]; ok {
		return fmt.Sprintf("0x%02X", byte(e.name))
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(f))
}

// postAttachHook runs a vendor-specific initializer sequence immediately
// after a successful attach, parameterized per family (spec.md §3 "Chip-
// family table entry"). It receives the Session so it can issue further
// probe commands; most families have none.
type postAttachHook func(s *Session) error

func noPostAttachHook(*Session) error { return nil }

// familyEntry is the immutable per-family record of spec.md §3.
type familyEntry struct {
	name FamilyCode

	flashStart     uint32
	dataPacketSize int // one of {64,128,256}
	writePackSize  int // one of {1024,4096}

	flashHelper []byte // opaque blob, nil for unknown/reserved families

	supportsFlashProtect bool
	supportsQueryInfo    bool
	supportsRamRomMode   bool
	supportsSpecialErase bool
	supportsSDIPrint     bool
	isRV32EC             bool

	postAttach postAttachHook
}

// familyTable is the static mapping from family code to record, spec.md
// §4.7 / §9: "keep them as static byte arrays keyed by family".
var familyTable = map[FamilyCode]familyEntry{
	FamilyCH32V103: {
		name: FamilyCH32V103, flashStart: 0x08000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32V103],
		supportsFlashProtect: true, supportsQueryInfo: true,
		postAttach: noPostAttachHook,
	},
	FamilyCH32V203: {
		name: FamilyCH32V203, flashStart: 0x08000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32V203],
		supportsFlashProtect: true, supportsQueryInfo: true,
		supportsSpecialErase: true, supportsSDIPrint: true,
		postAttach: noPostAttachHook,
	},
	FamilyCH32V208: {
		name: FamilyCH32V208, flashStart: 0x08000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32V208],
		supportsFlashProtect: true, supportsQueryInfo: true,
		supportsSpecialErase: true, supportsSDIPrint: true,
		postAttach: noPostAttachHook,
	},
	FamilyCH32V303: {
		name: FamilyCH32V303, flashStart: 0x08000000,
		dataPacketSize: 128, writePackSize: 4096,
		flashHelper:          helperBlobs[FamilyCH32V303],
		supportsFlashProtect: true, supportsQueryInfo: true,
		supportsSpecialErase: true, supportsSDIPrint: true,
		postAttach: noPostAttachHook,
	},
	FamilyCH32V305: {
		name: FamilyCH32V305, flashStart: 0x08000000,
		dataPacketSize: 128, writePackSize: 4096,
		flashHelper:          helperBlobs[FamilyCH32V305],
		supportsFlashProtect: true, supportsQueryInfo: true,
		supportsSpecialErase: true, supportsSDIPrint: true,
		postAttach: noPostAttachHook,
	},
	FamilyCH32V307: {
		name: FamilyCH32V307, flashStart: 0x08000000,
		dataPacketSize: 128, writePackSize: 4096,
		flashHelper:          helperBlobs[FamilyCH32V307],
		supportsFlashProtect: true, supportsQueryInfo: true,
		supportsSpecialErase: true, supportsSDIPrint: true, supportsRamRomMode: true,
		postAttach: noPostAttachHook,
	},
	FamilyCH32V003: {
		name: FamilyCH32V003, flashStart: 0x08000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32V003],
		supportsFlashProtect: true,
		postAttach:           noPostAttachHook,
	},
	FamilyCH32X035: {
		name: FamilyCH32X035, flashStart: 0x08000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32X035],
		supportsFlashProtect: true, supportsQueryInfo: true,
		supportsSDIPrint: true,
		postAttach:       noPostAttachHook,
	},
	FamilyCH32L103: {
		name: FamilyCH32L103, flashStart: 0x00000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32L103],
		supportsFlashProtect: true,
		postAttach:           noPostAttachHook,
	},
	FamilyCH32V317: {
		name: FamilyCH32V317, flashStart: 0x08000000,
		dataPacketSize: 256, writePackSize: 4096,
		flashHelper:          helperBlobs[FamilyCH32V317],
		supportsFlashProtect: true, supportsQueryInfo: true,
		supportsSpecialErase: true, supportsSDIPrint: true, supportsRamRomMode: true,
		postAttach: noPostAttachHook,
	},
	FamilyCH32V003B: {
		name: FamilyCH32V003B, flashStart: 0x08000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32V003B],
		supportsFlashProtect: true,
		postAttach:           noPostAttachHook,
	},
	FamilyCH32V002: {
		name: FamilyCH32V002, flashStart: 0x08000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper:          helperBlobs[FamilyCH32V002],
		supportsFlashProtect: true,
		postAttach:           noPostAttachHook,
	},
	FamilyCH570: {
		name: FamilyCH570, flashStart: 0x00000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper: helperBlobs[FamilyCH570],
		isRV32EC:    true,
		postAttach:  noPostAttachHook,
	},
	FamilyCH585: {
		name: FamilyCH585, flashStart: 0x00000000,
		dataPacketSize: 64, writePackSize: 1024,
		flashHelper: helperBlobs[FamilyCH585],
		isRV32EC:    true, supportsSDIPrint: true,
		postAttach: noPostAttachHook,
	},

	// Reserved placeholders (spec.md §9): recognized, never usable.
	FamilyReserved0F: {name: FamilyReserved0F, postAttach: noPostAttachHook},
	FamilyReserved46: {name: FamilyReserved46, postAttach: noPostAttachHook},
	FamilyReserved4E: {name: FamilyReserved4E, postAttach: noPostAttachHook},
	FamilyReserved86: {name: FamilyReserved86, postAttach: noPostAttachHook},
}

// lookupFamily resolves a family code reported by the probe, spec.md §4.7:
// "Unknown codes are reported as an error".
func lookupFamily(code FamilyCode) (familyEntry, error) {
	e, ok := familyTable[code]
	if !ok {
		return familyEntry{}, newErr(KindUnknownChip, fmt.Sprintf("unrecognized chip family code 0x%02X", byte(code)))
	}
	return e, nil
}

// usable reports whether a family entry has a real (non-reserved, non-
// placeholder) flash configuration.
func (e familyEntry) usable() bool {
	return e.flashHelper != nil
}

// FixCodeFlashStart implements spec.md §4.7:
//
//	fix_code_flash_start(addr) = addr < 0x1000_0000
//	    ? family.flash_start + addr
//	    : addr - 0x0800_0000
func (e familyEntry) FixCodeFlashStart(addr uint32) uint32 {
	if addr < 0x10000000 {
		return e.flashStart + addr
	}
	return addr - 0x08000000
}
