package wlink

import (
	"github.com/sirupsen/logrus"
)

// WriteProgress is invoked once per write_pack_size chunk during WriteFlash
// (spec.md §5: "A progress callback is invoked per-chunk on the caller's
// thread during write_flash but may not perform I/O on the probe"). May be
// nil.
type WriteProgress func(written, total int)

// flashAckSuccess is the only success value of the per-chunk 4-byte
// write-flash acknowledgement's byte 3; 0x05, 0x18, 0xFF are failure codes
// (spec.md §4.5 step 7).
const flashAckSuccess = 0x04

// esigSentinel marks a read-memory payload with no valid user code at the
// requested address (spec.md §4.5 step 6).
var esigSentinel = [4]byte{0xA9, 0xBD, 0xF9, 0xF3}

// WriteFlash programs bytes at addr, uploading the family's flash-helper
// blob first and streaming the payload in write_pack_size chunks with a
// per-chunk acknowledgement (spec.md §4.5 "Write procedure").
func (s *Session) WriteFlash(data []byte, addr uint32, progress WriteProgress) error {
	if s.family.supportsFlashProtect {
		protected, err := s.queryProtection()
		if err != nil {
			return err
		}
		if protected {
			if err := s.UnprotectFlash(); err != nil {
				return err
			}
		}
	}

	fixedAddr := s.family.FixCodeFlashStart(addr)

	if _, err := s.transact(SetWriteMemoryRegion{Start: fixedAddr, Len: uint32(len(data))}); err != nil {
		return err
	}
	// spec.md §4.5 step 3: WriteFlashOP (0x05) precedes the helper upload.
	if _, err := s.transact(ProgramWriteFlashOP); err != nil {
		return err
	}

	if s.family.flashHelper == nil {
		return newErr(KindUnsupportedChip, "family has no flash-helper blob")
	}
	if err := s.probe.dataWrite(s.family.flashHelper, s.family.dataPacketSize); err != nil {
		return err
	}

	commit := ProgramCommitGeneric
	if s.family.isRV32EC {
		commit = ProgramCommitRV32EC
	}
	resp, err := s.transact(commit)
	if err != nil {
		return err
	}
	if len(resp) < 1 || resp[0] != 0x07 {
		return newErr(KindProtocol, "flash-helper commit did not return 0x07")
	}

	// spec.md §4.5 step 6: WriteFlash (0x02) precedes the user payload stream.
	if _, err := s.transact(ProgramWriteFlash); err != nil {
		return err
	}

	written := 0
	pack := s.family.writePackSize
	for off := 0; off < len(data); off += pack {
		end := min(off+pack, len(data))
		chunk := data[off:end]
		if err := s.probe.dataWrite(chunk, s.family.dataPacketSize); err != nil {
			return err
		}
		ack, err := s.probe.dataReadExact(4)
		if err != nil {
			return err
		}
		if ack[3] != flashAckSuccess {
			return &LinkError{Kind: KindProtocol, Msg: "write-flash chunk rejected", Reason: ack[3]}
		}
		written = end
		if progress != nil {
			progress(written, len(data))
		}
	}

	_, err = s.transact(ProgramEnd)
	return err
}

// ReadMemory reads length bytes from addr via the on-chip read-memory
// stream, byte-swapping each 4-byte word from the device's big-endian wire
// order to little-endian (spec.md §4.5 "Read procedure").
func (s *Session) ReadMemory(addr uint32, length int) ([]byte, error) {
	rounded := (length + 3) &^ 3

	fixedAddr := s.family.FixCodeFlashStart(addr)
	if _, err := s.transact(SetReadMemoryRegion{Start: fixedAddr, Len: uint32(rounded)}); err != nil {
		return nil, err
	}
	if _, err := s.transact(ProgramReadMemoryStream); err != nil {
		return nil, err
	}

	raw, err := s.probe.dataRead(rounded)
	if err != nil {
		return nil, err
	}

	out := make([]byte, rounded)
	for i := 0; i+4 <= rounded; i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = raw[i+3], raw[i+2], raw[i+1], raw[i]
	}

	if rounded >= 4 && [4]byte{out[0], out[1], out[2], out[3]} == esigSentinel {
		s.cfg.logger.WithField("addr", addr).Warn("read-memory sentinel observed: no valid user code at address")
	}

	return out[:length], nil
}

// EraseFlash unprotects if needed, erases, then re-attaches to refresh
// session state (spec.md §4.5 "Erase").
func (s *Session) EraseFlash() error {
	if s.family.supportsFlashProtect {
		protected, err := s.queryProtection()
		if err != nil {
			return err
		}
		if protected {
			if err := s.UnprotectFlash(); err != nil {
				return err
			}
		}
	}
	if _, err := s.transact(ProgramEraseFlash); err != nil {
		return err
	}
	_, err := s.transact(AttachChipCmd{})
	return err
}

// --- Flash protection (spec.md §4.6) ---

// queryProtection reports the current read-protection state, selecting the
// v1 or v2 query form by probe firmware version.
func (s *Session) queryProtection() (bool, error) {
	action := FlashProtectQueryV1
	if s.probe.firmwareAtLeast29() {
		action = FlashProtectQueryV2
	}
	resp, err := s.transact(FlashProtectCmd{Action: action})
	if err != nil {
		return false, err
	}
	if len(resp) < 1 {
		return false, newErr(KindInvalidPayloadLength, "flash-protect query response empty")
	}
	return resp[0] == 0x01, nil
}

// UnprotectFlash clears read protection; spec.md §4.6 requires re-attach
// immediately before and after the toggle to take effect.
func (s *Session) UnprotectFlash() error {
	return s.toggleProtection(FlashProtectUnlock)
}

// ProtectFlash sets read protection, same re-attach bracketing as
// UnprotectFlash.
func (s *Session) ProtectFlash() error {
	return s.toggleProtection(FlashProtectLock)
}

func (s *Session) toggleProtection(action FlashProtectAction) error {
	if _, err := s.transact(AttachChipCmd{}); err != nil {
		return err
	}
	withSuffix := s.probe.firmwareAtLeast29()
	if _, err := s.transact(FlashProtectCmd{Action: action, WithSuffix: withSuffix}); err != nil {
		return err
	}
	_, err := s.transact(AttachChipCmd{})
	return err
}

// --- Special erase (spec.md §4.5 "Special erase") ---

// EraseFlashByPowerOff performs the attach-less power-off erase, available
// only on the E/W probe variants and only for families that support it.
func EraseFlashByPowerOff(p *Probe, family FamilyCode) error {
	return eraseSpecial(p, family, ErasePowerOffCmd{Family: family})
}

// EraseFlashByResetPin performs the attach-less reset-pin erase.
func EraseFlashByResetPin(p *Probe, family FamilyCode) error {
	return eraseSpecial(p, family, EraseResetPinCmd{Family: family})
}

func eraseSpecial(p *Probe, family FamilyCode, cmd Command) error {
	if !p.variant.supportsSpecialErase() {
		return newErr(KindUnsupportedChip, "probe variant does not support special erase")
	}
	entry, err := lookupFamily(family)
	if err != nil {
		return err
	}
	if !entry.supportsSpecialErase {
		return newErr(KindUnsupportedChip, "chip family does not support special erase")
	}

	if _, err := p.transact(SetSpeed{Family: family, Speed: SpeedMedium}); err != nil {
		return err
	}
	p.cfg.logger.WithFields(logrus.Fields{"family": family}).Info("special erase")
	_, err = p.transact(cmd)
	return err
}
