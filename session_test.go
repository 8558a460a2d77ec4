package wlink

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

func openFakeSession(t *testing.T, family FamilyCode, chipID uint32) (*Probe, *Session) {
	t.Helper()
	dev := newFakeDevice(family, chipID)
	tr := &fakeTransport{dev: dev}

	p, err := OpenNth(tr, 0)
	if err != nil {
		t.Fatalf("OpenNth: %v", err)
	}
	s, err := p.Attach(0, SpeedMedium)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return p, s
}

func TestAttachPopulatesChipDescriptor(t *testing.T) {
	_, s := openFakeSession(t, FamilyCH32V003, 0xC0FFEE00)
	if s.chip.Family != FamilyCH32V003 {
		t.Fatalf("family = %v, want %v", s.chip.Family, FamilyCH32V003)
	}
	if s.chip.ChipID != 0xC0FFEE00 {
		t.Fatalf("chip id = 0x%08X, want 0xC0FFEE00", s.chip.ChipID)
	}
}

func TestAttachRejectsMismatchedFamily(t *testing.T) {
	dev := newFakeDevice(FamilyCH32V003, 0x11223344)
	tr := &fakeTransport{dev: dev}
	p, err := OpenNth(tr, 0)
	if err != nil {
		t.Fatalf("OpenNth: %v", err)
	}
	_, err = p.Attach(FamilyCH32V307, SpeedMedium)
	if !IsKind(err, KindChipMismatch) {
		t.Fatalf("expected ChipMismatch, got %v", err)
	}
}

func TestAttachRejectsReservedFamily(t *testing.T) {
	dev := newFakeDevice(FamilyReserved0F, 0x01)
	tr := &fakeTransport{dev: dev}
	p, err := OpenNth(tr, 0)
	if err != nil {
		t.Fatalf("OpenNth: %v", err)
	}
	_, err = p.Attach(0, SpeedMedium)
	if !IsKind(err, KindUnsupportedChip) {
		t.Fatalf("expected UnsupportedChip for a reserved family, got %v", err)
	}
}

func TestSecondAttachOnSameProbeFails(t *testing.T) {
	p, _ := openFakeSession(t, FamilyCH32V003, 0x01)
	if _, err := p.Attach(0, SpeedMedium); err == nil {
		t.Fatal("expected second attach on the same probe to fail")
	}
}

func TestDetach(t *testing.T) {
	p, s := openFakeSession(t, FamilyCH32V003, 0x01)
	if err := s.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if p.hasSession {
		t.Fatal("hasSession must be cleared after Detach")
	}
}

func TestHaltResumeShortCircuit(t *testing.T) {
	_, s := openFakeSession(t, FamilyCH32V003, 0x01)
	if err := s.Halt(); err != nil {
		t.Fatalf("Halt: %v", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
}

func TestReadWriteRegRoundTrip(t *testing.T) {
	_, s := openFakeSession(t, FamilyCH32V003, 0x01)

	if err := s.WriteReg(CSRMarchid, 0x12345678); err != nil {
		t.Fatalf("WriteReg: %v", err)
	}
	got, err := s.ReadReg(CSRMarchid)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if got != 0x12345678 {
		t.Fatalf("ReadReg = 0x%08X, want 0x12345678", got)
	}
}

func TestWriteFlashStreamsHelperAndPayloadWithPadding(t *testing.T) {
	dev := newFakeDevice(FamilyCH32V003, 0x01)
	dev.pendingDataIn = []byte{0x00, 0x00, 0x00, 0x04} // per-chunk ack, success
	tr := &fakeTransport{dev: dev}

	p, err := OpenNth(tr, 0)
	if err != nil {
		t.Fatalf("OpenNth: %v", err)
	}
	s, err := p.Attach(0, SpeedMedium)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	var progressed int
	err = s.WriteFlash(payload, 0x08000000, func(written, total int) { progressed = written })
	if err != nil {
		t.Fatalf("WriteFlash: %v", err)
	}
	if progressed != len(payload) {
		t.Fatalf("progress callback reported %d, want %d", progressed, len(payload))
	}

	if len(dev.dataOut) != 2 {
		t.Fatalf("expected 2 data-OUT packets (helper blob, payload chunk), got %d", len(dev.dataOut))
	}

	// spec.md §4.5 steps 3/5/6: WriteFlashOP (0x05) before the helper blob,
	// the commit opcode (0x07 for a generic family), then WriteFlash (0x02)
	// before the user payload, finally End (0x08).
	wantOpcodes := []byte{progWriteFlashOP, progCommitGeneric, progWriteFlash, progEnd}
	if !bytes.Equal(dev.programOpcodes, wantOpcodes) {
		t.Fatalf("program opcode sequence = % X, want % X", dev.programOpcodes, wantOpcodes)
	}

	helperPacket := dev.dataOut[0]
	family, _ := lookupFamily(FamilyCH32V003)
	if len(helperPacket) != family.dataPacketSize {
		t.Fatalf("helper packet length = %d, want %d", len(helperPacket), family.dataPacketSize)
	}
	if !bytes.HasPrefix(helperPacket, family.flashHelper) {
		t.Fatalf("helper packet does not start with the flash-helper blob")
	}
	for _, b := range helperPacket[len(family.flashHelper):] {
		if b != 0xFF {
			t.Fatalf("helper packet padding byte = 0x%02X, want 0xFF", b)
		}
	}

	payloadPacket := dev.dataOut[1]
	if !bytes.HasPrefix(payloadPacket, payload) {
		t.Fatalf("payload packet does not start with the user payload")
	}
	for _, b := range payloadPacket[len(payload):] {
		if b != 0xFF {
			t.Fatalf("payload packet padding byte = 0x%02X, want 0xFF", b)
		}
	}
}

func TestWriteFlashAbortsOnBadAck(t *testing.T) {
	dev := newFakeDevice(FamilyCH32V003, 0x01)
	dev.pendingDataIn = []byte{0x00, 0x00, 0x00, 0x05} // failure code
	tr := &fakeTransport{dev: dev}

	p, _ := OpenNth(tr, 0)
	s, _ := p.Attach(0, SpeedMedium)

	err := s.WriteFlash([]byte{0x01, 0x02, 0x03, 0x04}, 0x08000000, nil)
	if !IsKind(err, KindProtocol) {
		t.Fatalf("expected Protocol error on bad ack, got %v", err)
	}
}

func TestReadMemoryByteSwapsAndDetectsSentinel(t *testing.T) {
	dev := newFakeDevice(FamilyCH32V003, 0x01)
	// Device streams big-endian; caller wants little-endian per word.
	// 0xF3 0xF9 0xBD 0xA9 on the wire, byte-swapped per word, reproduces
	// the sentinel A9 BD F9 F3 in the caller-facing buffer (spec.md §4.5
	// step 5-6).
	dev.pendingDataIn = []byte{0xF3, 0xF9, 0xBD, 0xA9}
	tr := &fakeTransport{dev: dev}

	logger, hook := logrustest.NewNullLogger()
	p, _ := OpenNth(tr, 0, WithLogger(logger))
	s, _ := p.Attach(0, SpeedMedium)

	data, err := s.ReadMemory(0x08000000, 4)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if !bytes.Equal(data, []byte{0xA9, 0xBD, 0xF9, 0xF3}) {
		t.Fatalf("got % X, want the byte-swapped sentinel", data)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning to be logged for the sentinel, got %v", e)
	}
}

func TestReadMemoryRoundsLengthUpToWordBoundary(t *testing.T) {
	dev := newFakeDevice(FamilyCH32V003, 0x01)
	dev.pendingDataIn = []byte{0x04, 0x03, 0x02, 0x01}
	tr := &fakeTransport{dev: dev}

	p, _ := OpenNth(tr, 0)
	s, _ := p.Attach(0, SpeedMedium)

	data, err := s.ReadMemory(0x08000000, 3)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if len(data) != 3 {
		t.Fatalf("len(data) = %d, want 3 (truncated back down for the caller)", len(data))
	}
	if !bytes.Equal(data, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("got % X", data)
	}
}

func TestQueryUnknownSubcommandsRoundTrip(t *testing.T) {
	_, s := openFakeSession(t, FamilyCH32V003, 0x01)
	if _, err := s.QueryUnknown03(); err != nil {
		t.Fatalf("QueryUnknown03: %v", err)
	}
	if _, err := s.QueryUnknown10(); err != nil {
		t.Fatalf("QueryUnknown10: %v", err)
	}
	if _, err := s.QueryUnknown04(); err != nil {
		t.Fatalf("QueryUnknown04: %v", err)
	}
}

func TestDumpInfoParsesElectronicSignature(t *testing.T) {
	_, s := openFakeSession(t, FamilyCH32V203, 0x01)
	chip, err := s.DumpInfo()
	if err != nil {
		t.Fatalf("DumpInfo: %v", err)
	}
	if chip.ESIG == nil {
		t.Fatal("expected ESIG to be populated for a family that supports query info")
	}
	if chip.ESIG.FlashSizeKB != 32 {
		t.Fatalf("flash size = %d, want 32", chip.ESIG.FlashSizeKB)
	}
}
