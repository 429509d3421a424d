package chromium

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// restoredMarker is the sessionStorage key that stops the restore script from
// overwriting local storage on every navigation within the same tab.
const restoredMarker = "__ledger_storage_restored"

// captureLocalStorageJS reads the local storage of the current origin.
const captureLocalStorageJS = `(function() {
    const out = { origin: window.location.origin, localStorage: [] };
    try {
        const s = window.localStorage;
        for (let i = 0; i < s.length; i++) {
            const k = s.key(i);
            if (k !== null) { out.localStorage.push({ name: k, value: s.getItem(k) }); }
        }
    } catch (e) { /* opaque origin or storage disabled */ }
    return out;
})()`

// toCookieParams converts snapshot cookies to CDP cookie parameters.
// Session cookies carry no expiry.
func toCookieParams(cookies []schemas.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.IsSession() {
			expires := cdp.TimeSinceEpoch(c.ExpiresAt())
			p.Expires = &expires
		}
		switch strings.ToLower(string(c.SameSite)) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}

// fromCDPCookies converts CDP cookies to the snapshot format.
func fromCDPCookies(cookies []*network.Cookie) []schemas.Cookie {
	out := make([]schemas.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		out = append(out, schemas.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: schemas.CookieSameSite(c.SameSite.String()),
		})
	}
	return out
}

// restoreLocalStorageScript returns a script that, on each new document,
// writes the saved entries of the document's origin into local storage once
// per tab. It returns "" when there is nothing to restore.
func restoreLocalStorageScript(origins []schemas.OriginState) (string, error) {
	saved := make(map[string][]schemas.NameValue, len(origins))
	for _, o := range origins {
		if o.Origin == "" || len(o.LocalStorage) == 0 {
			continue
		}
		saved[o.Origin] = append(saved[o.Origin], o.LocalStorage...)
	}
	if len(saved) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(saved)
	if err != nil {
		return "", fmt.Errorf("failed to encode local storage: %w", err)
	}

	return fmt.Sprintf(`(function() {
    const saved = %s;
    const entries = saved[window.location.origin];
    if (!entries) { return; }
    try {
        if (window.sessionStorage.getItem(%q)) { return; }
        for (const e of entries) { window.localStorage.setItem(e.name, e.value); }
        window.sessionStorage.setItem(%q, "1");
    } catch (e) { /* storage disabled */ }
})();`, payload, restoredMarker, restoredMarker), nil
}
