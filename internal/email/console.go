package email

import (
	"fmt"
	"io"
	"strings"
)

const bannerRule = "═══════════════════════════════════════════════════"

// writeSimulationBanner prints a simulated reset email for a developer
// watching the console. Empty optional fields print as "unknown".
func writeSimulationBanner(w io.Writer, rec *SimulationRecord, userAgent string) {
	if w == nil {
		return
	}

	var b strings.Builder
	b.WriteString(bannerRule + "\n")
	b.WriteString("📧 PASSWORD RESET EMAIL (simulated)\n")
	fmt.Fprintf(&b, "To:         %s\n", rec.To)
	if rec.PersonName != "" {
		fmt.Fprintf(&b, "Name:       %s\n", rec.PersonName)
	}
	fmt.Fprintf(&b, "Reset link: %s\n", rec.ResetLink)
	fmt.Fprintf(&b, "Expires in: %s\n", rec.TokenExpiry)
	fmt.Fprintf(&b, "User agent: %s\n", orUnknown(userAgent))
	fmt.Fprintf(&b, "Request IP: %s\n", orUnknown(rec.RequestIP))
	b.WriteString(bannerRule + "\n")

	// Best effort: a broken console must not affect the dispatch result
	_, _ = io.WriteString(w, b.String())
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
