package wlink

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// ChipDescriptor describes the target attached in a Session (spec.md §3).
// Created on attach, discarded on detach.
type ChipDescriptor struct {
	Family FamilyCode
	ChipID uint32

	// ESIG is populated lazily by DumpInfo (for families that support the
	// info query); nil until then.
	ESIG *ElectronicSignature

	// CoreArch is the marchid-derived core architecture string, populated
	// lazily the same way as ESIG.
	CoreArch string
}

// Session pairs one Probe with one attached Chip (spec.md §3). One Session
// is one attach; Attach is idempotent within the retry bound, Detach is
// destructive.
type Session struct {
	probe *Probe
	cfg   config

	chip  ChipDescriptor
	speed Speed

	family familyEntry
}

// transact forwards to the underlying Probe; dmi.go and flash.go send
// their control-endpoint commands through this.
func (s *Session) transact(cmd Command) ([]byte, error) { return s.probe.transact(cmd) }

// Attach opens a session against the chip currently connected to the
// probe, retrying up to cfg.attachTries times (spec.md §4.3).
//
// expectedFamily, if non-zero, causes attach to fail with ChipMismatch if
// the reported family disagrees.
func (p *Probe) Attach(expectedFamily FamilyCode, speed Speed) (*Session, error) {
	if p.hasSession {
		return nil, newErr(KindUnknown, "probe already hosts an active session")
	}

	s := &Session{probe: p, cfg: p.cfg, speed: speed}

	var lastErr error
	for attempt := 0; attempt < p.cfg.attachTries; attempt++ {
		// SetSpeed needs a family; use the expected family if given, else a
		// generic probe-level speed hint (family 0 is never a real family).
		probeFamily := expectedFamily
		if _, err := s.transact(SetSpeed{Family: probeFamily, Speed: speed}); err != nil {
			lastErr = err
			time.Sleep(p.cfg.attachBackoff)
			continue
		}

		resp, err := s.transact(AttachChipCmd{})
		if err != nil {
			lastErr = err
			time.Sleep(p.cfg.attachBackoff)
			continue
		}
		if len(resp) < 5 {
			lastErr = newErr(KindInvalidPayloadLength, "attach response too short")
			time.Sleep(p.cfg.attachBackoff)
			continue
		}

		family := FamilyCode(resp[0])
		chipID := binary.BigEndian.Uint32(resp[1:5])

		if expectedFamily != 0 && family != expectedFamily {
			return nil, &LinkError{
				Kind: KindChipMismatch, Msg: "attach returned a different chip family",
				WantFamily: expectedFamily, GotFamily: family,
			}
		}

		entry, err := lookupFamily(family)
		if err != nil {
			return nil, err
		}
		if !entry.usable() {
			return nil, newErr(KindUnsupportedChip, fmt.Sprintf("chip family %s has no documented flash layout", family))
		}

		// Re-send SetSpeed keyed by the actually reported family (spec.md
		// §4.3: "On success, re-send SetSpeed keyed by the actually
		// reported family").
		if _, err := s.transact(SetSpeed{Family: family, Speed: speed}); err != nil {
			return nil, err
		}

		s.chip = ChipDescriptor{Family: family, ChipID: chipID}
		s.family = entry

		if err := entry.postAttach(s); err != nil {
			return nil, err
		}

		p.hasSession = true
		p.cfg.logger.WithFields(logrus.Fields{
			"family": family, "chip_id": fmt.Sprintf("0x%08X", chipID),
		}).Info("chip attached")
		return s, nil
	}

	// spec.md §7: Timeout is "retry budget exhausted" — ProbeNotFound would
	// misreport this as "no matching USB device", which is not what happened.
	return nil, wrapErr(KindTimeout, "attach failed after retry budget", lastErr)
}

// Detach releases the target to run (spec.md §4.3). A dropped Session
// without explicit Detach leaves the target halted but is not otherwise
// damaging (spec.md §5).
func (s *Session) Detach() error {
	_, err := s.transact(DetachCmd{})
	s.probe.hasSession = false
	return err
}

// --- Halt / resume / reset passthrough (spec.md §4.4, consumer API) ---

func (s *Session) Halt() error              { return s.halt() }
func (s *Session) Resume() error            { return s.resume() }
func (s *Session) SoftReset() error         { return s.softReset() }
func (s *Session) ResetDebugModule() error  { return s.resetDebugModule() }

// ReadReg reads a CSR/GPR/FPR by regno. The target must be halted first
// (spec.md §3 invariant: "When attached, target is halted for any
// operation that reads CSR/GPR or memory via DMI").
func (s *Session) ReadReg(regno uint32) (uint32, error) {
	if err := s.halt(); err != nil {
		return 0, err
	}
	return s.readReg(regno)
}

// WriteReg writes a CSR/GPR/FPR by regno.
func (s *Session) WriteReg(regno uint32, value uint32) error {
	if err := s.halt(); err != nil {
		return err
	}
	return s.writeReg(regno, value)
}

// ReadMem32 reads one 32-bit word via DMI program-buffer access.
func (s *Session) ReadMem32(addr uint32) (uint32, error) {
	if err := s.halt(); err != nil {
		return 0, err
	}
	return s.readMemWord(addr)
}

// WriteMem32 writes one 32-bit word via DMI program-buffer access.
func (s *Session) WriteMem32(addr uint32, value uint32) error {
	if err := s.halt(); err != nil {
		return err
	}
	return s.writeMemWord(addr, value)
}

// --- Power rails / SDI print (spec.md §3 capability set, consumer API) ---

// SetSDIPrintEnabled toggles the SDI-print virtual-serial side channel.
// Returns UnsupportedChip if the probe variant/family doesn't support it.
func (s *Session) SetSDIPrintEnabled(enabled bool) error {
	if s.probe.variant == VariantLegacy {
		return newErr(KindUnsupportedChip, "probe variant does not support SDI print")
	}
	if !s.family.supportsSDIPrint {
		return newErr(KindUnsupportedChip, "family does not support SDI print")
	}
	level := gpio.Low
	if enabled {
		level = gpio.High
	}
	s.cfg.logger.WithField("level", level).Debug("sdi print toggle")
	_, err := s.transact(SDIPrintCmd{Enable: enabled})
	return err
}

// Set3V3OutputEnabled toggles the probe's 3.3V target-power rail, modeled
// as a gpio.Level the same way the teacher models its FPGA reset line
// (device.go: ResetFPGA(gpio.Level)) — a boolean-shaped hardware signal.
func (s *Session) Set3V3OutputEnabled(enabled bool) error {
	return s.setPowerRail(false, enabled)
}

// Set5VOutputEnabled toggles the probe's 5V target-power rail.
func (s *Session) Set5VOutputEnabled(enabled bool) error {
	return s.setPowerRail(true, enabled)
}

func (s *Session) setPowerRail(rail5V, enabled bool) error {
	level := gpio.Low
	if enabled {
		level = gpio.High
	}
	s.cfg.logger.WithFields(logrus.Fields{"rail5v": rail5V, "level": level}).Debug("power rail toggle")
	_, err := s.transact(SupplyCmd{Rail5V: rail5V, Enable: enabled})
	return err
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// --- Undocumented 0x0D subcommands (spec.md §9 open question) ---

// QueryUnknown03 preserves subcommand (0x0D,0x03)'s byte sequence verbatim
// per family; no semantic decoding is attempted (SPEC_FULL §D.2). Exported
// as an escape hatch for callers who have reverse-engineered a meaning for
// it on their own chip family, the same role RawCommand plays for the
// generic command table.
func (s *Session) QueryUnknown03() ([]byte, error) {
	return s.transact(unknownSubcommand{sub: subUnknown03, family: s.chip.Family})
}

// QueryUnknown10 preserves subcommand (0x0D,0x10)'s byte sequence verbatim
// per family; see QueryUnknown03.
func (s *Session) QueryUnknown10() ([]byte, error) {
	return s.transact(unknownSubcommand{sub: subUnknown10, family: s.chip.Family})
}

// QueryUnknown04 preserves subcommand (0x0D,0x04)'s byte sequence verbatim
// per family; see QueryUnknown03.
func (s *Session) QueryUnknown04() ([]byte, error) {
	return s.transact(unknownSubcommand{sub: subUnknown04, family: s.chip.Family})
}
