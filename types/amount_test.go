package types

import (
	"encoding/json"
	"testing"
)

func TestAmountConstructors(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		want   string
	}{
		{"Int64", NewAmount(4900), "4900"},
		{"Zero", ZeroAmount(), "0"},
		{"ZeroValue", Amount{}, "0"},
		{"Ether", Ether(3), "3000000000000000000"},
		{"Parsed", MustParseAmount("340282366920938463463374607431768211456"), "340282366920938463463374607431768211456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.String(); got != tt.want {
				t.Errorf("String: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseAmountErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Negative", "-1"},
		{"Garbage", "12abc"},
		{"Hex", "0xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAmount(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   func() Amount
		want Amount
	}{
		{"Add", func() Amount { return NewAmount(100).Add(NewAmount(200)) }, NewAmount(300)},
		{"AddZeroValue", func() Amount { return Amount{}.Add(NewAmount(5)) }, NewAmount(5)},
		{"Sub", func() Amount { return NewAmount(500).Sub(NewAmount(200)) }, NewAmount(300)},
		{"SubToZero", func() Amount { return NewAmount(7).Sub(NewAmount(7)) }, ZeroAmount()},
		{"SaturatingSub", func() Amount { return NewAmount(3).SaturatingSub(NewAmount(10)) }, ZeroAmount()},
		{"Sum", func() Amount { return SumAmounts(NewAmount(1), NewAmount(2), NewAmount(3)) }, NewAmount(6)},
		{"EtherScale", func() Amount { return Ether(10).Sub(Ether(3)) }, Ether(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.op()
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountSubUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on underflow")
		}
	}()
	_ = NewAmount(1).Sub(NewAmount(2))
}

func TestAmountImmutability(t *testing.T) {
	a := NewAmount(100)
	b := a.Add(NewAmount(50))

	if !a.Equal(NewAmount(100)) {
		t.Errorf("receiver mutated: got %s", a)
	}
	if !b.Equal(NewAmount(150)) {
		t.Errorf("result wrong: got %s", b)
	}

	big := a.Big()
	big.SetInt64(-1)
	if !a.Equal(NewAmount(100)) {
		t.Errorf("Big() leaked internal value: got %s", a)
	}
}

func TestAmountComparisons(t *testing.T) {
	small, large := NewAmount(10), NewAmount(20)

	if !small.LessThan(large) {
		t.Error("expected 10 < 20")
	}
	if !large.GreaterThan(small) {
		t.Error("expected 20 > 10")
	}
	if !small.Equal(NewAmount(10)) {
		t.Error("expected 10 == 10")
	}
	if zero := (Amount{}); !zero.IsZero() {
		t.Error("expected zero value to be zero")
	}
	if zero := (Amount{}); zero.Cmp(ZeroAmount()) != 0 {
		t.Error("expected zero value == ZeroAmount()")
	}
}

func TestAmountJSONRoundTrip(t *testing.T) {
	type payload struct {
		Value Amount `json:"value"`
	}

	in := payload{Value: Ether(42)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"value":"42000000000000000000"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Value.Equal(in.Value) {
		t.Errorf("round-trip mismatch: %s != %s", out.Value, in.Value)
	}
}

func TestAmountScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want Amount
	}{
		{"String", "12345", NewAmount(12345)},
		{"Bytes", []byte("67890"), NewAmount(67890)},
		{"Int64", int64(7), NewAmount(7)},
		{"Nil", nil, ZeroAmount()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			if err := a.Scan(tt.src); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if !a.Equal(tt.want) {
				t.Errorf("got %s, want %s", a, tt.want)
			}
		})
	}

	var a Amount
	if err := a.Scan(3.14); err == nil {
		t.Error("expected error scanning float64")
	}
}
