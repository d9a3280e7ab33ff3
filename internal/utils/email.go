package utils

import (
	"strings"
)

// ExtractAddressFromHeader extracts the bare address from a From-style header
// value (e.g. `Shop Name <orders@shop.example>` -> `orders@shop.example`),
// lowercased. Returns "" when no address can be found.
func ExtractAddressFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	if strings.Contains(header, "<") && strings.Contains(header, ">") {
		startIdx := strings.LastIndex(header, "<") + 1
		endIdx := strings.LastIndex(header, ">")
		if startIdx > 0 && endIdx > startIdx {
			header = header[startIdx:endIdx]
		}
	}

	header = strings.TrimSpace(header)
	if !strings.Contains(header, "@") {
		return ""
	}

	return strings.ToLower(header)
}

// ExtractDomainFromEmail returns the lowercased domain part of an address,
// accepting both bare addresses and display-name forms.
func ExtractDomainFromEmail(email string) string {
	email = ExtractAddressFromHeader(email)
	if email == "" {
		return ""
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
