package storage

import "net/http"

// HTTPCookies is the cookie jar of one HTTP exchange: reads come from the
// request, writes go to the response. Cookies written during the exchange are
// visible to later reads so write-then-read behaves like a browser.
type HTTPCookies struct {
	w       http.ResponseWriter
	r       *http.Request
	pending map[string]*http.Cookie
}

var _ CookieJar = (*HTTPCookies)(nil)

func NewHTTPCookies(w http.ResponseWriter, r *http.Request) *HTTPCookies {
	return &HTTPCookies{w: w, r: r, pending: make(map[string]*http.Cookie)}
}

func (c *HTTPCookies) Enabled() bool { return c != nil && c.w != nil && c.r != nil }

func (c *HTTPCookies) Cookie(name string) (string, bool) {
	if ck, ok := c.pending[name]; ok {
		if ck.MaxAge < 0 || ck.Value == "" {
			return "", false
		}
		return ck.Value, true
	}
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (c *HTTPCookies) SetCookie(ck *http.Cookie) {
	http.SetCookie(c.w, ck)
	c.pending[ck.Name] = ck
}
