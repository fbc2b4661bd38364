package checkout

import (
	"net/url"
	"strings"
)

// sessionIDPlaceholder is substituted by Stripe with the session id on redirect.
const sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// resolveOrigin returns a scheme://host origin, falling back when the declared
// one is absent or not http(s).
func resolveOrigin(declared, fallback string) string {
	declared = strings.TrimRight(strings.TrimSpace(declared), "/")
	if declared != "" {
		if u, err := url.Parse(declared); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return strings.TrimRight(fallback, "/")
}

func fallbackSuccessURL(origin, itemName string) string {
	return origin + "/marketplace?payment=success&item=" + encodeComponent(itemName) + "&session_id=" + sessionIDPlaceholder
}

func fallbackCancelURL(origin string) string {
	return origin + "/marketplace?payment=cancelled"
}

// encodeComponent escapes like a browser's encodeURIComponent for the
// characters that matter here: spaces become %20 rather than +.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func validRedirectURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
