package export

import (
	"regexp"
	"strings"
)

const maxBaseRunes = 100

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F\x7F]`)
	nonPrintableASCII   = regexp.MustCompile(`[^\x20-\x7E]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
	trailingDotsSpaces  = regexp.MustCompile(`[. ]+$`)
)

// SanitizeBase derives a filesystem-safe file name (without extension) from a
// project title. It never returns an empty string.
func SanitizeBase(title string) string {
	s := unsafeFilenameChars.ReplaceAllString(title, " ")
	s = tidy(s)
	if r := []rune(s); len(r) > maxBaseRunes {
		s = string(r[:maxBaseRunes])
	}
	if s == "" {
		return "project"
	}
	return s
}

// ASCIIFallback strips everything outside printable ASCII, for clients that
// ignore the extended filename* parameter.
func ASCIIFallback(name string) string {
	s := tidy(nonPrintableASCII.ReplaceAllString(name, ""))
	if s == "" {
		return "project"
	}
	return s
}

func tidy(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return trailingDotsSpaces.ReplaceAllString(s, "")
}

// ContentDisposition builds an attachment header with a quoted ASCII name and
// an RFC 5987 UTF-8 name.
func ContentDisposition(filename, asciiFallback string) string {
	safe := strings.ReplaceAll(asciiFallback, `"`, "")
	return `attachment; filename="` + safe + `"; filename*=UTF-8''` + encodeExtValue(filename)
}

// encodeExtValue percent-encodes every byte outside the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func encodeExtValue(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		if isUnreserved(b) {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0F])
	}
	return sb.String()
}

func isUnreserved(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", b) >= 0
}
