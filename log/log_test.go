package log

import "testing"

func TestSetLevelGetLevelRoundTrip(t *testing.T) {
	defer SetLevel(InfoLevel)
	SetLevel(WarnLevel)
	if GetLevel() != WarnLevel {
		t.Errorf("GetLevel() = %v, want WarnLevel", GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace": TraceLevel,
		"DEBUG": DebugLevel,
		"Warn":  WarnLevel,
		"ERROR": ErrorLevel,
		"info":  InfoLevel,
		"":      InfoLevel,
		"huh":   InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggingCallsDoNotPanic(t *testing.T) {
	SetLevel(TraceLevel)
	Trace("session", "reader started for %s", "device-1")
	Debug("session", "decoded opcode 0x%02X", 0x0A)
	Info("session", "connected to %s", "device-1")
	Warn("session", "retrying write to handle 0x%04X", 0x0010)
	Error("session", "transport closed: %v", "eof")
	SetLevel(InfoLevel)
}
