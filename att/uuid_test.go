package att

import "testing"

func TestUUIDEqualAcrossWidths(t *testing.T) {
	short := UUID16(0x1800)
	long, err := ParseUUID([]byte{
		0xFB, 0x34, 0x9B, 0x5F, 0x80, 0x00,
		0x00, 0x80,
		0x00, 0x10,
		0x00, 0x00,
		0x00, 0x18, 0x00, 0x00,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !short.Equal(long) {
		t.Errorf("expected %v to equal %v", short, long)
	}
}

func TestUUIDNotEqual(t *testing.T) {
	if UUID16(0x1800).Equal(UUID16(0x1801)) {
		t.Error("expected 0x1800 != 0x1801")
	}
}

func TestParseUUIDRejectsBadLength(t *testing.T) {
	if _, err := ParseUUID([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("expected error for 3-byte UUID")
	}
}

func TestUUIDBytesRoundTrip(t *testing.T) {
	u := UUID16(0x2A37)
	b := u.Bytes()
	reparsed, err := ParseUUID(b)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Equal(reparsed) || reparsed.Width() != 2 {
		t.Errorf("round trip failed: %v -> %x -> %v", u, b, reparsed)
	}
}

func TestUUIDStringFormat(t *testing.T) {
	u := UUID16(0x1800)
	want := "00001800-0000-1000-8000-00805f9b34fb"
	if got := u.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
