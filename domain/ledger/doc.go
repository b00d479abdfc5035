// Package ledger is the single source of truth for cash and shares.
//
// Accounts are created on first touch with the starting balance.
// Escrow is modelled as an immediate deduction: a buy order holds
// price x qty of cash and a sell order holds its shares until the
// exchange settles a match or releases the order.
package ledger
