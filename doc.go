// Package escrow provides a transactional escrow ledger for Go applications.
//
// Escrow is designed as a library, not a service. Import it directly into
// your Go application for maximum performance and flexibility. It provides:
//
//   - Escrowed value transfers with a strict open -> completed | refunded
//     state machine (terminal states are mutually exclusive and final)
//   - Rolling three-window spending limits (daily/weekly/monthly) with
//     independent window resets and O(1) accounting per call
//   - Capability-based authorization: payee-only completion, admin-only
//     refunds, owner-managed approved-spender sets
//   - A service directory with pricing tiers, verification flags, and
//     per-service revenue counters
//   - Deterministic, externally verifiable payment identifiers
//   - Typed journal events and a pluggable hook system for indexers and
//     audit trails
//
// # Quick Start
//
// Create an engine instance with your preferred store:
//
//	import (
//	    "github.com/xraph/escrow"
//	    "github.com/xraph/escrow/store/postgres"
//	)
//
//	// Initialize store (db is a *grove.DB opened with the pgdriver)
//	store := postgres.New(db)
//	if err := store.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	e := escrow.New(store, escrow.WithAdmin(adminAddr))
//
//	// Start the engine (begins background workers)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Payments escrow value between a payer and a payee until the payee
// confirms the off-chain condition:
//
//	p, err := e.PayNative(ctx, payer, payee, requestHash, escrow.Ether(1))
//	// ... payee delivers, then:
//	_, err = e.CompletePayment(ctx, payee, p.ID)
//
// Spending limits bound what approved spenders may report against an
// account across three rolling windows:
//
//	err := e.SetLimits(ctx, account, escrow.Ether(10), escrow.Ether(50), escrow.Ether(200))
//	err = e.ApproveSpender(ctx, account, agent)
//	err = e.RecordSpending(ctx, agent, account, escrow.Ether(3))
//
// The directory maps services to prices:
//
//	svc, err := e.RegisterService(ctx, provider, escrow.RegisterServiceInput{...})
//	p, err := e.PayForService(ctx, payer, svc.ID, requestHash)
//
// # Amounts
//
// All value calculations use arbitrary-precision integer arithmetic in the
// smallest unit (wei-scale). The Amount type never goes negative and
// serializes as a decimal string, since 256-bit values do not fit in JSON
// numbers.
//
// # Identifiers
//
// Payments use deterministic keccak-256 identifiers derived from their
// creation tuple, so an id can be recomputed and verified externally:
//
//	0x9c22ff5f21f0b81b113e63f7db6da94fedef11b2119b4088b89664fb9a3cb658
//
// Directory services and journal entries use TypeID:
//
//	svc_01h2xcejqtf2nbrexx3vqjhp41  // Service ID
//	evt_01h455vb4pex5vsknk084sn02q  // Journal entry ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package escrow
