package id_test

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ServiceID", id.NewServiceID, "svc_"},
		{"EventID", id.NewEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixService)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixService {
		t.Errorf("expected prefix %q, got %q", id.PrefixService, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ServiceID", id.NewServiceID, id.ParseServiceID},
		{"EventID", id.NewEventID, id.ParseEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseServiceID rejects evt_", id.NewEventID().String(), id.ParseServiceID},
		{"ParseEventID rejects svc_", id.NewServiceID().String(), id.ParseEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewServiceID()
	parsed, err := id.ParseWithPrefix(i.String(), id.PrefixService)
	if err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if parsed.String() != i.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), i.String())
	}

	_, err = id.ParseWithPrefix(i.String(), id.PrefixEvent)
	if err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewServiceID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewEventID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewServiceID()
	b := id.NewServiceID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewServiceID() calls returned the same ID: %q", a.String())
	}
}

func TestComputePaymentIDDeterministic(t *testing.T) {
	payer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	payee := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token := common.Address{}
	amount := types.Ether(1)
	req := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000000")

	a := id.ComputePaymentID(payer, payee, token, amount, req, 0)
	b := id.ComputePaymentID(payer, payee, token, amount, req, 0)
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
	if a.IsNil() {
		t.Error("computed id should not be nil")
	}
}

func TestComputePaymentIDDistinguishesInputs(t *testing.T) {
	payer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	payee := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	amount := types.Ether(5)
	req := common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")

	base := id.ComputePaymentID(payer, payee, token, amount, req, 7)

	variants := map[string]id.PaymentID{
		"swapped parties": id.ComputePaymentID(payee, payer, token, amount, req, 7),
		"native token":    id.ComputePaymentID(payer, payee, common.Address{}, amount, req, 7),
		"other amount":    id.ComputePaymentID(payer, payee, token, types.Ether(6), req, 7),
		"other request":   id.ComputePaymentID(payer, payee, token, amount, common.Hash{}, 7),
		"other sequence":  id.ComputePaymentID(payer, payee, token, amount, req, 8),
	}
	for name, v := range variants {
		if v == base {
			t.Errorf("%s: expected a different id than the base tuple", name)
		}
	}
}

func TestComputePaymentIDSequence(t *testing.T) {
	payer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	payee := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount := types.Ether(1)
	req := common.Hash{}

	first := id.ComputePaymentID(payer, payee, common.Address{}, amount, req, 0)
	second := id.ComputePaymentID(payer, payee, common.Address{}, amount, req, 1)
	if first == second {
		t.Error("distinct sequence numbers must yield distinct ids")
	}
}

func TestParsePaymentIDRoundTrip(t *testing.T) {
	p := id.ComputePaymentID(
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.Address{},
		types.Ether(3),
		common.Hash{},
		42,
	)
	parsed, err := id.ParsePaymentID(p.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != p {
		t.Errorf("round-trip mismatch: %s != %s", parsed, p)
	}
}

func TestParsePaymentIDRejectsMalformed(t *testing.T) {
	tests := []string{
		"",
		"0x",
		"0x1234",
		"deadbeef",
		"0xzz00000000000000000000000000000000000000000000000000000000000000",
	}
	for _, s := range tests {
		if _, err := id.ParsePaymentID(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestNilPaymentID(t *testing.T) {
	var p id.PaymentID
	if !p.IsNil() {
		t.Error("zero-value PaymentID should be nil")
	}
	val, err := p.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil driver value, got %v", val)
	}
}
