package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractGeminiCode(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
		ok   bool
	}{
		{
			name: "standard body with two newlines",
			body: "您好，\n\n您的一次性验证码为：\n\nA1B2C3\n\n此验证码将在10分钟后失效。",
			code: "A1B2C3",
			ok:   true,
		},
		{
			name: "extra interior whitespace",
			body: "您的一次性验证码为：   \n \n\t 9X8Y7Z ",
			code: "9X8Y7Z",
			ok:   true,
		},
		{
			name: "lowercase code",
			body: "您的一次性验证码为：\n\nabc123\n",
			code: "abc123",
			ok:   true,
		},
		{
			name: "code at end of input",
			body: "您的一次性验证码为：\n\nQQ1122",
			code: "QQ1122",
			ok:   true,
		},
		{
			name: "marker missing",
			body: "your code is right here: ABC123",
			ok:   false,
		},
		{
			name: "code too short",
			body: "您的一次性验证码为：\n\nAB12\n",
			ok:   false,
		},
		{
			name: "code too long",
			body: "您的一次性验证码为：\n\nABC1234\n",
			ok:   false,
		},
		{
			name: "empty input",
			body: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := ExtractGeminiCode(tt.body)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestExtractProviderCode(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
		ok   bool
	}{
		{name: "chinese phrase", body: "您的验证代码为 482913，请勿泄露。", code: "482913", ok: true},
		{name: "english phrase", body: "Your verification code is 001122.", code: "001122", ok: true},
		{name: "spanish phrase", body: "Tu código es: 930215", code: "930215", ok: true},
		{name: "phrase and code separated", body: "code is\n\n  771234", code: "771234", ok: true},
		{name: "letters are not a code", body: "code is ABC123", ok: false},
		{name: "no phrase", body: "please enter 123456", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := ExtractProviderCode(tt.body)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><body><p>您的一次性验证码为：</p><p>ZK93M1</p><style>p{color:red}</style></body></html>`
	text := HTMLToText(html)
	assert.Contains(t, text, "您的一次性验证码为：")
	assert.Contains(t, text, "ZK93M1")
	assert.NotContains(t, text, "color:red")

	plain := "您的一次性验证码为：\n\nZK93M1"
	assert.Equal(t, plain, HTMLToText(plain))
}
