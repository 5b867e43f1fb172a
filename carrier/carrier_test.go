package carrier

import "testing"

func TestParseCarrierRoundTrip(t *testing.T) {
	for c := Power; c <= WPHeat; c++ {
		name := c.String()
		got, err := ParseCarrier(name)
		if err != nil {
			t.Fatalf("ParseCarrier(%q): %v", name, err)
		}
		if got != c {
			t.Errorf("ParseCarrier(%q) = %v, want %v", name, got, c)
		}
	}
}

func TestParseCarrierUnknown(t *testing.T) {
	if _, err := ParseCarrier("not_a_carrier"); err == nil {
		t.Fatal("expected error for unknown carrier name")
	}
}

func TestPortSign(t *testing.T) {
	s := NewSeries(3)
	src := NewPort("chp_1", Power, Source, s)
	sink := NewPort("battery", Power, Sink, s)
	if src.Sign() != 1 {
		t.Errorf("source sign = %v, want 1", src.Sign())
	}
	if sink.Sign() != -1 {
		t.Errorf("sink sign = %v, want -1", sink.Sign())
	}
}

func TestSeriesAtIsOneIndexed(t *testing.T) {
	s := NewSeries(3)
	s[1] = 10
	s[2] = 20
	s[3] = 30
	if s.At(1) != 10 || s.At(2) != 20 || s.At(3) != 30 {
		t.Fatalf("unexpected series values: %v", s)
	}
	if s.At(0) != 0 || s.At(4) != 0 {
		t.Fatalf("out-of-range At should return 0, got At(0)=%v At(4)=%v", s.At(0), s.At(4))
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
}
