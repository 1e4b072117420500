package extract

import "strings"

// extractPlain returns content as a string with invalid UTF-8 sequences
// replaced by the replacement character.
func extractPlain(content []byte) string {
	return strings.ToValidUTF8(string(content), "\ufffd")
}
