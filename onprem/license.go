package onprem

import (
	"net/url"
	"strings"

	"github.com/threema-ch/libthreema-go/protoerr"
)

const licenseScheme = "threemaonprem"
const oppfSuffix = ".oppf"
const defaultOppfPath = "/prov/config.oppf"

// License is a parsed `threemaonprem://license?...` URL, per spec.md
// §6.
type License struct {
	Server   string
	Username string
	Password string
}

// ParseLicense parses a license URL of the form
// `threemaonprem://license?server=<https-url>&username=<u>&password=<p>`.
func ParseLicense(raw string) (License, error) {
	var lic License
	u, err := url.Parse(raw)
	if err != nil {
		return lic, protoerr.Wrap(protoerr.DecodingFailed, "onprem license url", err)
	}
	if u.Scheme != licenseScheme {
		return lic, protoerr.New(protoerr.DecodingFailed, "onprem license url has wrong scheme")
	}
	q := u.Query()
	lic.Server = q.Get("server")
	lic.Username = q.Get("username")
	lic.Password = q.Get("password")
	if lic.Server == "" || lic.Username == "" || lic.Password == "" {
		return lic, protoerr.New(protoerr.DecodingFailed, "onprem license url missing server, username, or password")
	}
	return lic, nil
}

// ConfigURL returns the OPPF fetch URL for this license, appending
// `/prov/config.oppf` when Server doesn't already end in `.oppf`
// (stripping a trailing slash first), per spec.md §6.
func (l License) ConfigURL() string {
	if strings.HasSuffix(l.Server, oppfSuffix) {
		return l.Server
	}
	return strings.TrimSuffix(l.Server, "/") + defaultOppfPath
}
