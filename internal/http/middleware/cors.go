package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsAllowHeaders  = "Authorization, Content-Type, X-Requested-With"
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsExposeHeaders = "Content-Disposition, Retry-After, X-Request-Id"
	corsMaxAge        = "600"
)

// originPolicy guarda origens exatas e sufixos de subdomínio ("*.floripa.sc.gov.br").
type originPolicy struct {
	exact    map[string]bool
	suffixes []string
}

func newOriginPolicy(entries []string) originPolicy {
	p := originPolicy{exact: make(map[string]bool, len(entries))}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "*."):
			p.suffixes = append(p.suffixes, strings.ToLower(entry[1:]))
		default:
			p.exact[strings.TrimRight(entry, "/")] = true
		}
	}
	return p
}

// allows aceita a origem exata ou um subdomínio próprio de algum sufixo (nunca a raiz).
func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.exact[origin] {
		return true
	}
	if len(p.suffixes) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// CORS aplica a política de ALLOW_ORIGINS com credenciais (cookie de refresh).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := policy.allows(origin)
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
					w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
					w.Header().Set("Access-Control-Max-Age", corsMaxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
