// File: internal/campus/auth/scrape.go
package auth

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// saltPattern matches the inline-script assignment the mobile login page uses
// to deliver the password salt when no dedicated element is present.
var saltPattern = regexp.MustCompile(`var pwdDefaultEncryptSalt = "(\w{16})"`)

// parsePage parses the raw login page into a DOM.
func parsePage(body []byte) (*html.Node, error) {
	return htmlquery.Parse(bytes.NewReader(body))
}

// extractLoginFields scrapes the CAS login form's input children, keeping
// only the whitelisted field names. Returns ErrLoginFormNotFound when the
// page carries no #casLoginForm at all.
func extractLoginFields(doc *html.Node) (map[string]string, error) {
	form := htmlquery.FindOne(doc, `//form[@id='casLoginForm']`)
	if form == nil {
		return nil, ErrLoginFormNotFound
	}

	fields := make(map[string]string)
	for _, input := range htmlquery.Find(form, `//input`) {
		name := htmlquery.SelectAttr(input, "name")
		if _, ok := loginFieldWhitelist[name]; ok {
			fields[name] = htmlquery.SelectAttr(input, "value")
		}
	}
	return fields, nil
}

// extractSalt finds the 16-character password-encryption salt. The dedicated
// page element wins; the inline-script assignment is the mobile fallback.
// Absence of both is legitimate: the portal then expects a plaintext password.
func extractSalt(doc *html.Node, rawPage []byte) (string, bool) {
	if node := htmlquery.FindOne(doc, `//*[@id='pwdDefaultEncryptSalt']`); node != nil {
		if salt := strings.TrimSpace(htmlquery.InnerText(node)); salt != "" {
			return salt, true
		}
	}
	if m := saltPattern.FindSubmatch(rawPage); m != nil {
		return string(m[1]), true
	}
	return "", false
}

// scrapeErrorMessage pulls the server's human-readable failure reason off the
// final page, best effort, for diagnostics only.
func scrapeErrorMessage(body []byte) string {
	doc, err := parsePage(body)
	if err != nil {
		return ""
	}
	node := htmlquery.FindOne(doc, `//*[@id='errorMsg']`)
	if node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}
