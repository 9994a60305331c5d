package conversation

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/material"
)

var leadIns = []string{
	"show me more",
	"what about",
	"how about",
	"similar to",
	"more like",
	"anything else",
	"other options",
	"something else",
	"instead",
}

var pronouns = map[string]bool{
	"it": true, "this": true, "that": true, "these": true, "those": true, "them": true, "they": true,
}

var entityPatterns = []struct {
	attr material.Attribute
	re   *regexp.Regexp
}{
	{material.AttrColor, regexp.MustCompile(
		`(?i)\b(red|blue|green|yellow|orange|purple|pink|brown|black|white|gr[ae]y|beige|cream|ivory|charcoal|navy|teal|gold|silver|bronze|copper)\b`)},
	{material.AttrMaterialType, regexp.MustCompile(
		`(?i)\b(wood|oak|walnut|maple|bamboo|marble|granite|quartz|slate|limestone|travertine|concrete|steel|aluminium|aluminum|brass|glass|ceramic|porcelain|vinyl|laminate|leather|linen|velvet|wool|cotton|brick|stone|terrazzo|cork)\b`)},
	{material.AttrFinish, regexp.MustCompile(
		`(?i)\b(matte|matt|gloss|glossy|satin|polished|honed|brushed|textured|lacquered|oiled|tumbled|antiqued)\b`)},
	{material.AttrDimensions, regexp.MustCompile(
		`(?i)\b(\d+(?:\.\d+)?(?:\s*x\s*\d+(?:\.\d+)?)?\s*(?:mm|cm|m|in|inch|inches|ft|feet))\b`)},
}

// ExtractEntities classifies query fragments into known attributes.
// Only the first match of each attribute is kept.
func ExtractEntities(query string) map[string]string {
	out := make(map[string]string)
	for _, p := range entityPatterns {
		if m := p.re.FindStringSubmatch(query); m != nil {
			out[string(p.attr)] = strings.ToLower(strings.TrimSpace(m[1]))
		}
	}
	return out
}

// ResolveFollowUp carries terms from the previous query into enhanced when
// the current query reads as a follow-up. The first turn of a session and
// standalone queries return enhanced unchanged.
func ResolveFollowUp(query, enhanced string, c *domconv.Context) string {
	prev := previousQuery(c)
	if prev == "" || !isFollowUp(query) {
		return enhanced
	}

	current := significantTokens(query)
	var missing []string
	for _, p := range significantTokens(prev) {
		if !overlaps(p, current) && !slices.Contains(missing, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return enhanced
	}
	return enhanced + " " + strings.Join(missing, " ")
}

func previousQuery(c *domconv.Context) string {
	if c == nil {
		return ""
	}
	if c.LastQuery != "" {
		return c.LastQuery
	}
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Role == domconv.RoleUser {
			return c.History[i].Content
		}
	}
	return ""
}

func isFollowUp(query string) bool {
	lowered := strings.ToLower(query)
	for _, phrase := range leadIns {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	for _, w := range words(lowered) {
		if pronouns[w] {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// significantTokens drops tokens of three characters or fewer.
func significantTokens(s string) []string {
	var out []string
	for _, w := range words(s) {
		if len([]rune(w)) > 3 {
			out = append(out, w)
		}
	}
	return out
}

func overlaps(token string, in []string) bool {
	for _, t := range in {
		if strings.Contains(t, token) || strings.Contains(token, t) {
			return true
		}
	}
	return false
}
