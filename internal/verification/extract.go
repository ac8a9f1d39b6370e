package verification

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The business site sends its one-time code on the line after a fixed marker
// phrase. The provider's own verification mails use a short locale phrase
// followed by six digits. Both extractors are stateless and tolerate extra
// whitespace between phrase and code.
var (
	geminiCodeRegex   = regexp.MustCompile(`(?i)您的一次性验证码为：\s*([A-Z0-9]{6})(?:[^A-Z0-9a-z]|$)`)
	providerCodeRegex = regexp.MustCompile(`(?:代码为|code is|código es)\D*?(\d{6})`)
)

// ExtractGeminiCode returns the 6-character one-time code from a business
// verification email body, or ok=false when no code is present.
func ExtractGeminiCode(text string) (string, bool) {
	m := geminiCodeRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractProviderCode returns the 6-digit code from the mail provider's own
// verification emails, or ok=false when no code is present.
func ExtractProviderCode(text string) (string, bool) {
	m := providerCodeRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HTMLToText reduces an HTML email body to its visible text so the code
// extractors can run over it. Plain-text bodies pass through unchanged.
func HTMLToText(body string) string {
	if !strings.Contains(body, "<") {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script,style").Remove()
	return doc.Text()
}
