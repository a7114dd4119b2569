// internal/notify/format.go
package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/cpmm-sniper/internal/config"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

func txLink(sig solana.Signature) string {
	return fmt.Sprintf(`<a href="https://solscan.io/tx/%s">Solscan</a>`, sig)
}

// FormatPoolDetected renders the new-pool alert.
func FormatPoolDetected(tok domain.EligibleToken, at time.Time) string {
	var b strings.Builder
	b.WriteString("🚨 <b>New pool detected</b> 🚨\n\n")
	b.WriteString("💎 <b>Token</b>\n")
	fmt.Fprintf(&b, "└ Mint: <code>%s</code>\n\n", tok.Mint)
	b.WriteString("💰 <b>Liquidity</b>\n")
	fmt.Fprintf(&b, "├ SOL: %s\n", config.LamportsToSOL(tok.QuoteReserve, 2))
	fmt.Fprintf(&b, "└ Time: %s\n\n", at.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString("🔍 <b>Links</b>\n")
	fmt.Fprintf(&b, "├ Transaction: %s\n", txLink(tok.Signature))
	fmt.Fprintf(&b, "├ Token: <a href=\"https://solscan.io/token/%s\">Token Info</a>\n", tok.Mint)
	fmt.Fprintf(&b, "└ Chart: <a href=\"https://dexscreener.com/solana/%s\">DexScreener</a>\n", tok.Mint)
	return b.String()
}

// FormatAttempt renders a terminal buy attempt.
func FormatAttempt(a *domain.BuyAttempt) string {
	var b strings.Builder
	switch {
	case a.Status == domain.StatusSucceeded:
		b.WriteString("💰 <b>Buy succeeded</b>\n")
		fmt.Fprintf(&b, "├ Mint: <code>%s</code>\n", a.Token.Mint)
		fmt.Fprintf(&b, "├ Took: %s\n", a.Duration().Round(time.Millisecond))
		fmt.Fprintf(&b, "└ Transaction: %s\n", txLink(a.LastTx()))
	case a.Partial():
		b.WriteString("⚠️ <b>Buy PARTIALLY executed</b>\n")
		fmt.Fprintf(&b, "├ Mint: <code>%s</code>\n", a.Token.Mint)
		fmt.Fprintf(&b, "├ Confirmed: %d of the route\n", a.Confirmed)
		for _, sig := range a.TxIDs {
			fmt.Fprintf(&b, "├ %s\n", txLink(sig))
		}
		fmt.Fprintf(&b, "└ Error: <code>%s</code>\n", html.EscapeString(errString(a.Err)))
	default:
		b.WriteString("❌ <b>Buy failed</b>\n")
		fmt.Fprintf(&b, "├ Mint: <code>%s</code>\n", a.Token.Mint)
		fmt.Fprintf(&b, "├ Retries: %d\n", a.RetryCount)
		fmt.Fprintf(&b, "└ Error: <code>%s</code>\n", html.EscapeString(errString(a.Err)))
	}
	return b.String()
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
