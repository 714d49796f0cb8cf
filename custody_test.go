package escrow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/types"
)

func TestCustodianNativePull(t *testing.T) {
	c := escrow.NewMemoryCustodian()
	ctx := context.Background()

	c.Mint(escrow.NativeToken, payer, escrow.Ether(5))

	// Native transfers carry the value with the call, no prior approval.
	if err := c.Pull(ctx, escrow.NativeToken, payer, escrow.Ether(2)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if got := c.BalanceOf(escrow.NativeToken, payer); !got.Equal(escrow.Ether(3)) {
		t.Errorf("payer balance = %s, want %s", got, escrow.Ether(3))
	}
	if got := c.Escrowed(escrow.NativeToken); !got.Equal(escrow.Ether(2)) {
		t.Errorf("escrowed = %s, want %s", got, escrow.Ether(2))
	}
}

func TestCustodianTokenRequiresAllowance(t *testing.T) {
	c := escrow.NewMemoryCustodian()
	ctx := context.Background()

	c.Mint(token, payer, escrow.Ether(10))

	err := c.Pull(ctx, token, payer, escrow.Ether(1))
	if !errors.Is(err, escrow.ErrCustodyFailed) {
		t.Fatalf("Pull without allowance = %v, want ErrCustodyFailed", err)
	}

	c.Approve(token, payer, escrow.Ether(3))
	if err := c.Pull(ctx, token, payer, escrow.Ether(2)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	// The allowance is consumed, only 1 ether remains approved.
	err = c.Pull(ctx, token, payer, escrow.Ether(2))
	if !errors.Is(err, escrow.ErrCustodyFailed) {
		t.Fatalf("Pull beyond remaining allowance = %v, want ErrCustodyFailed", err)
	}
	if err := c.Pull(ctx, token, payer, escrow.Ether(1)); err != nil {
		t.Fatalf("Pull within remaining allowance failed: %v", err)
	}
}

func TestCustodianInsufficientBalance(t *testing.T) {
	c := escrow.NewMemoryCustodian()

	c.Mint(escrow.NativeToken, payer, escrow.Ether(1))

	err := c.Pull(context.Background(), escrow.NativeToken, payer, escrow.Ether(2))
	if !errors.Is(err, escrow.ErrCustodyFailed) {
		t.Fatalf("Pull beyond balance = %v, want ErrCustodyFailed", err)
	}
	if got := c.BalanceOf(escrow.NativeToken, payer); !got.Equal(escrow.Ether(1)) {
		t.Errorf("failed pull should not touch the balance, got %s", got)
	}
}

func TestCustodianRelease(t *testing.T) {
	c := escrow.NewMemoryCustodian()
	ctx := context.Background()

	c.Mint(escrow.NativeToken, payer, escrow.Ether(4))
	if err := c.Pull(ctx, escrow.NativeToken, payer, escrow.Ether(4)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	err := c.Release(ctx, escrow.NativeToken, payee, escrow.Ether(5))
	if !errors.Is(err, escrow.ErrCustodyFailed) {
		t.Fatalf("Release beyond custody = %v, want ErrCustodyFailed", err)
	}

	if err := c.Release(ctx, escrow.NativeToken, payee, escrow.Ether(4)); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if got := c.BalanceOf(escrow.NativeToken, payee); !got.Equal(escrow.Ether(4)) {
		t.Errorf("payee balance = %s, want %s", got, escrow.Ether(4))
	}
	if got := c.Escrowed(escrow.NativeToken); !got.Equal(types.ZeroAmount()) {
		t.Errorf("escrowed after full release = %s, want 0", got)
	}
}
