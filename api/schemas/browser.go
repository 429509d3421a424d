package schemas

import (
	"time"
)

// -- Storage State Schemas --

// CookieSameSite defines the SameSite attribute for cookies.
type CookieSameSite string

const (
	CookieSameSiteStrict CookieSameSite = "Strict"
	CookieSameSiteLax    CookieSameSite = "Lax"
	CookieSameSiteNone   CookieSameSite = "None"
)

// Cookie represents a browser cookie as stored in a storage-state snapshot.
// The JSON layout matches the storage-state files written by Playwright so a
// snapshot produced by one engine can be restored by the other.
type Cookie struct {
	Name     string         `json:"name"`
	Value    string         `json:"value"`
	Domain   string         `json:"domain"`
	Path     string         `json:"path"`
	Expires  float64        `json:"expires"`
	HTTPOnly bool           `json:"httpOnly"`
	Secure   bool           `json:"secure"`
	SameSite CookieSameSite `json:"sameSite,omitempty"`
}

// IsSession reports whether the cookie lives only for the browser session.
// Playwright encodes session cookies with an expiry of -1.
func (c Cookie) IsSession() bool {
	return c.Expires <= 0
}

// ExpiresAt returns the expiry as a time. The zero time is returned for session cookies.
func (c Cookie) ExpiresAt() time.Time {
	if c.IsSession() {
		return time.Time{}
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// NameValue is a single local storage entry.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OriginState holds the local storage entries of one origin.
type OriginState struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

// StorageState is the serializable snapshot of cookies and per-origin storage
// that defines an authenticated browsing session.
type StorageState struct {
	Cookies []Cookie      `json:"cookies"`
	Origins []OriginState `json:"origins"`
}

// IsEmpty reports whether the snapshot carries no cookies and no storage.
func (s *StorageState) IsEmpty() bool {
	return s == nil || (len(s.Cookies) == 0 && len(s.Origins) == 0)
}

// Origin returns the storage of the given origin, or nil if none was captured.
func (s *StorageState) Origin(origin string) *OriginState {
	if s == nil {
		return nil
	}
	for i := range s.Origins {
		if s.Origins[i].Origin == origin {
			return &s.Origins[i]
		}
	}
	return nil
}

// EarliestExpiry returns the soonest expiry among the persistent cookies.
// The zero time is returned when every cookie is a session cookie.
func (s *StorageState) EarliestExpiry() time.Time {
	var earliest time.Time
	if s == nil {
		return earliest
	}
	for _, c := range s.Cookies {
		if c.IsSession() {
			continue
		}
		if t := c.ExpiresAt(); earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest
}

// -- Export Schemas --

// RecordID is an opaque token identifying one purchase record, read from the
// text content of the listing page.
type RecordID string

// String implements fmt.Stringer.
func (r RecordID) String() string { return string(r) }

// Artifact describes a single rendered document written to disk.
type Artifact struct {
	Index    int      `json:"index"`
	RecordID RecordID `json:"record_id"`
	URL      string   `json:"url"`
	Path     string   `json:"path"`
	Bytes    int      `json:"bytes"`
	// Pages is only populated when artifact verification is enabled.
	Pages int `json:"pages,omitempty"`
}
