// File: internal/campus/auth/endpoints.go
package auth

// Platform constants. Endpoint paths and field names are part of the wire
// protocol and are preserved as data, never re-derived.
const (
	// DirectoryURL serves the bulk institution directory.
	DirectoryURL = "https://mobile.campushoy.com/v6/config/guest/tenant/list"
	// DetailURL serves a single institution's portal descriptor, selected by
	// the "ids" query parameter.
	DetailURL = "https://mobile.campushoy.com/v6/config/guest/tenant/info"

	// CAS endpoints, rooted at the host the login page redirects to.
	needCaptchaPath   = "/authserver/needCaptcha.html"
	sliderCaptchaPath = "/authserver/sliderCaptcha.do"
	sliderVerifyPath  = "/authserver/verifySliderImageCode.do"

	// portalLoginSuffix completes the service callback URL passed to CAS.
	portalLoginSuffix = "/portal/login"

	// loginUserAgent is the mobile client identity the portal expects during
	// the login exchange.
	loginUserAgent = "Mozilla/5.0 (Linux; Android 4.4.4; OPPO R11 Plus Build/KTU84P) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/33.0.0.0 Mobile Safari/537.36 yiban/8.1.11 cpdaily/8.1.11 wisedu/8.1.11"
)

// portalMarkers identify a candidate portal URL as one this client can speak
// to. A URL containing neither marker is an unsupported portal type.
var portalMarkers = []string{"campusphere", "cpdaily"}

// loginFieldWhitelist restricts which hidden form inputs are carried into the
// login POST. Everything else on the page is noise.
var loginFieldWhitelist = map[string]struct{}{
	"username":  {},
	"password":  {},
	"lt":        {},
	"dllt":      {},
	"execution": {},
	"_eventId":  {},
	"rmShown":   {},
	"sign":      {},
}
