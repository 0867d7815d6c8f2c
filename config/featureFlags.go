package config

import (
	"os"
	"strings"
)

// StrictStockEnforcement makes settlement fail an order when a cart line
// asks for more units than a variant has on hand, instead of clamping the
// stock at zero and tolerating oversell.
//
// Set via env:
// - STRICT_STOCK_ENFORCEMENT=true
func StrictStockEnforcement() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_STOCK_ENFORCEMENT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
