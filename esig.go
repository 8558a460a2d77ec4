package wlink

import (
	"encoding/binary"
	"fmt"
)

// ElectronicSignature is the optional chip descriptor block read from the
// on-chip ESIG ROM region: flash size in KB and a 64-bit UID (spec.md §3
// "Chip descriptor").
type ElectronicSignature struct {
	FlashSizeKB uint16
	UID         [8]byte // presentation order, already BE->LE reversed per half
}

// UIDString formats UID as lowercase hex octets separated by '-', spec.md
// §8 scenario 1's "cd-ab-b4-ae-45-bc-c6-16" form.
func (e ElectronicSignature) UIDString() string {
	return fmt.Sprintf("%02x-%02x-%02x-%02x-%02x-%02x-%02x-%02x",
		e.UID[0], e.UID[1], e.UID[2], e.UID[3], e.UID[4], e.UID[5], e.UID[6], e.UID[7])
}

const esigMarkerHi, esigMarkerLo = 0xFF, 0xFF

// parseElectronicSignature decodes the non-framed ESIG response (spec.md
// §4.2/§9): `FF FF [flash_size_kb_be:u16] [uid_hi_be:u32] [uid_lo_be:u32] …`.
// Each UID half is byte-reversed (BE->LE) independently before being placed
// in presentation order, per spec.md §9's "reversed once more" convention.
func parseElectronicSignature(frame []byte) (ElectronicSignature, error) {
	if len(frame) < 12 || frame[0] != esigMarkerHi || frame[1] != esigMarkerLo {
		return ElectronicSignature{}, newErr(KindInvalidPayload, "not an electronic-signature response")
	}

	flashSizeKB := binary.BigEndian.Uint16(frame[2:4])
	hi := frame[4:8]
	lo := frame[8:12]

	var sig ElectronicSignature
	sig.FlashSizeKB = flashSizeKB
	for i := 0; i < 4; i++ {
		sig.UID[i] = hi[3-i]
		sig.UID[4+i] = lo[3-i]
	}
	return sig, nil
}

// queryElectronicSignature issues GetChipInfo (V2 on firmware >= 2.9, V1
// otherwise per spec.md §8 scenario 2) and parses the signature block.
func (s *Session) queryElectronicSignature() (ElectronicSignature, error) {
	version := ChipInfoV1
	if s.probe.firmwareAtLeast29() {
		version = ChipInfoV2
	}
	frame, err := s.probe.transactRaw(ChipInfoCmd{Version: version})
	if err != nil {
		return ElectronicSignature{}, err
	}
	return parseElectronicSignature(frame)
}

// coreArchitectures maps a subset of well-known marchid CSR values to a
// human-readable core name (spec.md §3: "optional parsed core-architecture
// string (derived from marchid CSR)"). Unrecognized values are reported
// numerically rather than guessed.
var coreArchitectures = map[uint32]string{
	0x00000001: "RV32IMAC (QingKe V2)",
	0x00000003: "RV32IMAFC (QingKe V3)",
	0x00000004: "RV32IMAC (QingKe V4)",
	0x00000005: "RV32EC (QingKe V4B)",
	0x00000007: "RV32IMAFC (QingKe V4C)",
	0x0000000C: "RV32EC (QingKe V2C)",
}

// coreArchitecture resolves a marchid CSR value to a display string.
func coreArchitecture(marchid uint32) string {
	if name, ok := coreArchitectures[marchid]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%08X)", marchid)
}

// DumpInfo composes family, UID/flash-size and core-architecture into one
// consumer-facing report (spec.md §6 dump_info), the same multi-field
// diagnostic-dump shape as the teacher's cmd/gice info subcommand.
func (s *Session) DumpInfo() (ChipDescriptor, error) {
	if s.family.supportsQueryInfo {
		sig, err := s.queryElectronicSignature()
		if err != nil {
			return s.chip, err
		}
		s.chip.ESIG = &sig
	}

	if err := s.halt(); err != nil {
		return s.chip, err
	}
	marchid, err := s.readReg(CSRMarchid)
	if err != nil {
		return s.chip, err
	}
	s.chip.CoreArch = coreArchitecture(marchid)

	s.cfg.logger.WithFields(map[string]interface{}{
		"family": s.chip.Family, "chip_id": fmt.Sprintf("0x%08X", s.chip.ChipID),
		"core": s.chip.CoreArch,
	}).Info("dump info")
	return s.chip, nil
}
