package style

import "testing"

func TestLookup(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Tag
		ok   bool
	}{
		{in: "Name", want: Name, ok: true},
		{in: "name", want: Name, ok: true},
		{in: " FRIENDLY ", want: Friendly, ok: true},
		{in: "notavailable", want: NotAvailable, ok: true},
		{in: "Error", ok: false},
		{in: "Purple", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := Lookup(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("Lookup(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHexFallback(t *testing.T) {
	t.Parallel()
	if got := Tag("bogus").Hex(); got != Default.Hex() {
		t.Fatalf("Hex fallback = %s, want %s", got, Default.Hex())
	}
	if Error.Hex() == Default.Hex() {
		t.Fatal("Error style must be distinct from Default")
	}
}
