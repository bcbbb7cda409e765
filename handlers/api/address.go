package api

import "strings"

// ParseSender splits a raw From header into display name and address.
// Quoted display names lose their enclosing quotes. A header without an
// angle-bracket address is treated as a bare address with no name.
//
//	"Alex Doe <alex@example.com>"  -> ("Alex Doe", "alex@example.com")
//	"alex@example.com"             -> ("", "alex@example.com")
//	`"Quoted Name" <a@b.com>`      -> ("Quoted Name", "a@b.com")
func ParseSender(raw string) (name, address string) {
	raw = strings.TrimSpace(raw)

	open := strings.Index(raw, "<")
	if open < 0 {
		return "", raw
	}

	rest := raw[open+1:]
	if end := strings.Index(rest, ">"); end >= 0 {
		address = strings.TrimSpace(rest[:end])
	} else {
		address = strings.TrimSpace(rest)
	}

	name = strings.TrimSpace(raw[:open])
	name = strings.Trim(name, `"'`)
	name = strings.TrimSpace(name)

	return name, address
}
