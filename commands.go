package wlink

import "encoding/binary"

// Command IDs, spec.md §6.
const (
	cmdSetWriteRegion byte = 0x01
	cmdProgram        byte = 0x02
	cmdSetReadRegion  byte = 0x03
	cmdFlashProtect   byte = 0x06
	cmdDmi            byte = 0x08
	cmdReset          byte = 0x0B
	cmdSetSpeedID     byte = 0x0C
	cmdProbeControl   byte = 0x0D
	cmdDisableDebug   byte = 0x0E
	cmdChipInfo       byte = 0x11
	cmdDisencrypt     byte = 0xFE
	cmdModeSwitch     byte = 0xFF
)

// Probe-control subcommands (first payload byte of cmdProbeControl).
const (
	subProbeInfo      byte = 0x01
	subAttachChip     byte = 0x02
	subDetach         byte = 0xFF
	subErasePowerOff  byte = 0x0F
	subEraseResetPin  byte = 0x08
	subUnknown03      byte = 0x03
	subUnknown10      byte = 0x10
	subUnknown04      byte = 0x04
	subSDIPrint       byte = 0x05
	sub3V3Supply      byte = 0x06
	sub5VSupply       byte = 0x07
)

// Program-state opcodes (single-byte payload of cmdProgram), spec.md §4.5.
// Naming follows spec.md's own `Program::WriteFlashOP`/`Program::WriteFlash`
// call-out: WriteFlashOP (0x05) precedes the flash-helper upload, WriteFlash
// (0x02) precedes the user payload stream — despite the superficially
// mnemonic temptation to read "WriteFlashOP" as "begin write-flash".
const (
	progEraseFlash       byte = 0x01
	progWriteFlash       byte = 0x02
	progWriteVerify      byte = 0x04
	progWriteFlashOP     byte = 0x05
	progPrepare          byte = 0x06
	progCommitGeneric    byte = 0x07
	progEnd              byte = 0x08
	progReadMemoryStream byte = 0x0C
	progCommitRV32EC     byte = 0x0B
)

// SetWriteMemoryRegion is command 0x01: two big-endian u32s (start, len).
type SetWriteMemoryRegion struct {
	Start uint32
	Len   uint32
}

func (r SetWriteMemoryRegion) CommandID() byte { return cmdSetWriteRegion }
func (r SetWriteMemoryRegion) Payload() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], r.Start)
	binary.BigEndian.PutUint32(buf[4:8], r.Len)
	return buf
}

// SetReadMemoryRegion is command 0x03: two big-endian u32s (start, len).
type SetReadMemoryRegion struct {
	Start uint32
	Len   uint32
}

func (r SetReadMemoryRegion) CommandID() byte { return cmdSetReadRegion }
func (r SetReadMemoryRegion) Payload() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], r.Start)
	binary.BigEndian.PutUint32(buf[4:8], r.Len)
	return buf
}

// Program is command 0x02: a single-opcode program-state transition.
type Program struct {
	Opcode byte
}

func (p Program) CommandID() byte { return cmdProgram }
func (p Program) Payload() []byte { return []byte{p.Opcode} }

var (
	ProgramEraseFlash       = Program{progEraseFlash}
	ProgramWriteFlash       = Program{progWriteFlash}
	ProgramWriteVerify      = Program{progWriteVerify}
	ProgramWriteFlashOP     = Program{progWriteFlashOP}
	ProgramPrepare          = Program{progPrepare}
	ProgramCommitGeneric    = Program{progCommitGeneric}
	ProgramCommitRV32EC     = Program{progCommitRV32EC}
	ProgramEnd              = Program{progEnd}
	ProgramReadMemoryStream = Program{progReadMemoryStream}
)

// SetSpeed is command 0x0C: family-keyed speed selection.
type Speed byte

const (
	SpeedLow Speed = iota
	SpeedMedium
	SpeedHigh
)

// speedFrequencies grounds each logical Speed in a concrete clock, the
// same role periph.io/x/conn/v3/physic.Frequency plays for the teacher's
// own SPI clock (device.go: `clock physic.Frequency`).
var speedFrequencies = map[Speed]uint32{ // Hz, approximate link clock
	SpeedLow:    400_000,
	SpeedMedium: 4_000_000,
	SpeedHigh:   12_000_000,
}

type SetSpeed struct {
	Family FamilyCode
	Speed  Speed
}

func (s SetSpeed) CommandID() byte { return cmdSetSpeedID }
func (s SetSpeed) Payload() []byte { return []byte{byte(s.Family), byte(s.Speed)} }

// ProbeInfoCmd is probe-control subcommand 0x01.
type ProbeInfoCmd struct{}

func (ProbeInfoCmd) CommandID() byte { return cmdProbeControl }
func (ProbeInfoCmd) Payload() []byte { return []byte{subProbeInfo} }

// AttachChipCmd is probe-control subcommand 0x02.
type AttachChipCmd struct{}

func (AttachChipCmd) CommandID() byte { return cmdProbeControl }
func (AttachChipCmd) Payload() []byte { return []byte{subAttachChip} }

// DetachCmd is probe-control subcommand 0xFF.
type DetachCmd struct{}

func (DetachCmd) CommandID() byte { return cmdProbeControl }
func (DetachCmd) Payload() []byte { return []byte{subDetach} }

// ErasePowerOffCmd is probe-control subcommand 0x0F, attach-less.
type ErasePowerOffCmd struct{ Family FamilyCode }

func (c ErasePowerOffCmd) CommandID() byte { return cmdProbeControl }
func (c ErasePowerOffCmd) Payload() []byte { return []byte{subErasePowerOff, byte(c.Family)} }

// EraseResetPinCmd is probe-control subcommand 0x08, attach-less.
type EraseResetPinCmd struct{ Family FamilyCode }

func (c EraseResetPinCmd) CommandID() byte { return cmdProbeControl }
func (c EraseResetPinCmd) Payload() []byte { return []byte{subEraseResetPin, byte(c.Family)} }

// SDIPrintCmd is probe-control subcommand 0x05: enable/disable the SDI-print
// virtual-serial side channel (spec.md §3 capability set).
type SDIPrintCmd struct{ Enable bool }

func (c SDIPrintCmd) CommandID() byte { return cmdProbeControl }
func (c SDIPrintCmd) Payload() []byte { return []byte{subSDIPrint, boolByte(c.Enable)} }

// SupplyCmd is probe-control subcommand 0x06/0x07: toggle the 3.3V/5V
// target-power rail (spec.md §3 capability set).
type SupplyCmd struct {
	Rail5V bool
	Enable bool
}

func (c SupplyCmd) CommandID() byte { return cmdProbeControl }
func (c SupplyCmd) Payload() []byte {
	sub := sub3V3Supply
	if c.Rail5V {
		sub = sub5VSupply
	}
	return []byte{sub, boolByte(c.Enable)}
}

// unknownSubcommand preserves the byte sequence of a partially-documented
// 0x0D subcommand verbatim per family (spec.md §9 open question, SPEC_FULL
// §D.2): no semantic decoding is attempted.
type unknownSubcommand struct {
	sub    byte
	family FamilyCode
}

func (u unknownSubcommand) CommandID() byte { return cmdProbeControl }
func (u unknownSubcommand) Payload() []byte { return []byte{u.sub, byte(u.family)} }

// FlashProtectAction selects the one-byte action of command 0x06.
type FlashProtectAction byte

const (
	FlashProtectQueryV1  FlashProtectAction = 0x01
	FlashProtectUnlock   FlashProtectAction = 0x02
	FlashProtectLock     FlashProtectAction = 0x03
	FlashProtectQueryV2  FlashProtectAction = 0x04
)

// flashProtectSuffix is appended on probe firmware >= 2.9 for unlock/lock
// (spec.md §4.6).
var flashProtectSuffix = []byte{0xBF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

type FlashProtectCmd struct {
	Action       FlashProtectAction
	WithSuffix   bool // probe firmware >= 2.9, only meaningful for Unlock/Lock
}

func (c FlashProtectCmd) CommandID() byte { return cmdFlashProtect }
func (c FlashProtectCmd) Payload() []byte {
	payload := []byte{byte(c.Action)}
	if c.WithSuffix && (c.Action == FlashProtectUnlock || c.Action == FlashProtectLock) {
		payload = append(payload, flashProtectSuffix...)
	}
	return payload
}

// ChipInfoVersion selects which GetChipInfo variant to issue (spec.md §8
// scenario 2): V2 on probe firmware >= 2.9, V1 otherwise.
type ChipInfoVersion int

const (
	ChipInfoV1 ChipInfoVersion = iota
	ChipInfoV2
)

type ChipInfoCmd struct{ Version ChipInfoVersion }

func (c ChipInfoCmd) CommandID() byte { return cmdChipInfo }
func (c ChipInfoCmd) Payload() []byte {
	if c.Version == ChipInfoV2 {
		return []byte{0x06}
	}
	return []byte{0x09}
}

// ModeSwitchCmd is the RV→DAP escape, RawCommand<0xff>([0x41]) per
// spec.md §4.3.
func ModeSwitchCmd() RawCommand { return RawCommand{ID: cmdModeSwitch, Bytes: []byte{0x41}} }

// dapToRVSequence is written directly to the DAP write endpoint (not
// framed as a Command — spec.md §4.3: "write the 4-byte sequence
// 81 FF 01 52").
var dapToRVSequence = []byte{0x81, 0xFF, 0x01, 0x52}
