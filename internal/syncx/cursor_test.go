package syncx

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cursor Cursor
	}{
		{"normal", Cursor{CreatedAt: 1730635200, ID: 42}},
		{"same second tie", Cursor{CreatedAt: 1730635200, ID: 43}},
		{"id only", Cursor{CreatedAt: 0, ID: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Encode(tt.cursor)
			if s == "" {
				t.Fatal("encoded to empty string")
			}
			got, ok := Decode(s)
			if !ok {
				t.Fatalf("decode %q failed", s)
			}
			if got != tt.cursor {
				t.Errorf("round trip = %+v, want %+v", got, tt.cursor)
			}
		})
	}
}

func TestEncodeZeroCursor(t *testing.T) {
	if s := Encode(Cursor{}); s != "" {
		t.Errorf("zero cursor encoded to %q", s)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"not base64 !!!",
		"aGVsbG8",         // no separator
		"fGZvbw",          // "|foo": empty timestamp
		"MTIzfGFiYw",      // "123|abc": non-numeric id
		"MTIzfDQ1Nnw3ODk", // "123|456|789": too many fields
	} {
		if c, ok := Decode(s); ok {
			t.Errorf("Decode(%q) accepted: %+v", s, c)
		}
	}
}

func TestDistinctCursorsEncodeDistinctly(t *testing.T) {
	a := Encode(Cursor{CreatedAt: 100, ID: 1})
	b := Encode(Cursor{CreatedAt: 100, ID: 2})
	if a == b {
		t.Error("cursors with different ids encoded identically")
	}
}
