package email

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// FromKind tells how a sender identity was resolved.
type FromKind int

const (
	// FromDefault means no display string was configured.
	FromDefault FromKind = iota
	// FromParsed means a "Name <address>" string was split into its parts.
	FromParsed
	// FromFallback means the configured string was used verbatim as the address.
	FromFallback
)

// ErrMalformedFrom is recorded when a display string has angle brackets but
// no address between them.
var ErrMalformedFrom = errors.New("sender has angle brackets but no address")

// fromPattern matches "<prefix><address>" with the address last.
var fromPattern = regexp.MustCompile(`^(.*)<([^<>]+)>\s*$`)

// FromIdentity is the resolved sender of reset emails.
type FromIdentity struct {
	Kind    FromKind
	Name    string
	Address string
	// Err is set when a bracketed display string could not be split.
	Err error
}

// ResolveFrom resolves the sender identity from an optional display string.
//
// "Support Team <support@example.com>" yields FromParsed with both parts
// trimmed. The prefix is kept as written, commas and parentheses included,
// and only a surrounding pair of double quotes is removed. A value without
// angle brackets, or one with nothing between them, is used as the address
// with defaultName (FromFallback). An empty value yields defaultAddress and
// defaultName (FromDefault).
func ResolveFrom(raw, defaultAddress, defaultName string) FromIdentity {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FromIdentity{Kind: FromDefault, Name: defaultName, Address: defaultAddress}
	}

	if !strings.Contains(raw, "<") || !strings.Contains(raw, ">") {
		return FromIdentity{Kind: FromFallback, Name: defaultName, Address: raw}
	}

	m := fromPattern.FindStringSubmatch(raw)
	address := ""
	if m != nil {
		address = strings.TrimSpace(m[2])
	}
	if address == "" {
		return FromIdentity{Kind: FromFallback, Name: defaultName, Address: raw, Err: ErrMalformedFrom}
	}

	name := unquoteName(strings.TrimSpace(m[1]))
	if name == "" {
		name = defaultName
	}
	return FromIdentity{Kind: FromParsed, Name: name, Address: address}
}

func unquoteName(name string) string {
	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		if s, err := strconv.Unquote(name); err == nil {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(name[1 : len(name)-1])
	}
	return name
}
