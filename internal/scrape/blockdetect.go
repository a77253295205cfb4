package scrape

import (
	"bytes"
	"net/http"
)

// BlockType names the kind of anti-bot wall a response hit.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockPaywall    BlockType = "paywall"
)

var (
	cfMarkers      = [][]byte{[]byte("checking your browser"), []byte("cf-browser-verification"), []byte("cf-chl-")}
	captchaMarkers = [][]byte{[]byte("g-recaptcha"), []byte("recaptcha"), []byte("hcaptcha"), []byte("captcha")}
	paywallMarkers = [][]byte{[]byte("subscribe to continue reading"), []byte("to continue reading, subscribe"), []byte("already a subscriber? log in")}
)

// DetectBlock reports whether resp and its body look like an interstitial
// rather than the requested page. Only the Cloudflare check applies to
// bodies of any size.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp == nil {
		return BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("Cf-Ray") != "" || resp.Header.Get("Cf-Mitigated") != "" ||
			resp.Header.Get("Server") == "cloudflare" {
			return BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)
	if containsAny(lower, cfMarkers) {
		return BlockCloudflare
	}
	if len(body) < 20000 && containsAny(lower, captchaMarkers) {
		return BlockCaptcha
	}

	if len(body) < 2000 {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
			return BlockJSShell
		}
		if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
			return BlockJSShell
		}
	}
	if len(body) < 8000 && containsAny(lower, paywallMarkers) {
		return BlockPaywall
	}
	return BlockNone
}

func containsAny(b []byte, markers [][]byte) bool {
	for _, m := range markers {
		if bytes.Contains(b, m) {
			return true
		}
	}
	return false
}
