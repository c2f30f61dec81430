package entitycache

import (
	"crypto/md5" //nolint:gosec // used only for content-identity hashing, not security
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

var (
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`[ \t\f\v]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)

	// footerPatterns match common trailing boilerplate that should not
	// pollute the cleaned body shown to the LLM (spec §4.4).
	footerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^--\s*$`),
		regexp.MustCompile(`(?i)^sent from my .*$`),
		regexp.MustCompile(`(?i)^sent from .*$`),
		regexp.MustCompile(`(?i)unsubscribe`),
		regexp.MustCompile(`(?i)^confidentiality notice`),
	}

	htmlEntities = map[string]string{
		"&amp;":  "&",
		"&lt;":   "<",
		"&gt;":   ">",
		"&quot;": `"`,
		"&#39;":  "'",
		"&apos;": "'",
		"&nbsp;": " ",
	}
)

// CleanBody strips HTML, decodes common entities, collapses whitespace,
// trims common footer boilerplate, and caps the result to
// models.MaxCleanBodyBytes with a truncation marker (spec §4.4).
func CleanBody(raw string) string {
	text := htmlTagRe.ReplaceAllString(raw, " ")
	for entity, repl := range htmlEntities {
		text = strings.ReplaceAll(text, entity, repl)
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		dropped := false
		for _, pat := range footerPatterns {
			if pat.MatchString(trimmed) {
				dropped = true
				break
			}
		}
		if !dropped {
			kept = append(kept, line)
		}
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	return capBytes(text, models.MaxCleanBodyBytes)
}

// capBytes truncates s to at most limit bytes (on a rune boundary) and
// appends models.TruncationMarker when truncation occurred.
func capBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	truncated := s[:limit]
	for len(truncated) > 0 {
		r := []rune(truncated)
		last := r[len(r)-1]
		if last != '�' {
			break
		}
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + models.TruncationMarker
}

// HashBody returns a stable content-identity hash of the cleaned body.
func HashBody(cleanBody string) string {
	sum := md5.Sum([]byte(cleanBody)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
