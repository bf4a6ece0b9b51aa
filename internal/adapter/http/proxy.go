package http

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/Strob0t/modelgate/internal/service"
)

// AgentProxy forwards /agents/{name}/* to the named agent with the prefix
// stripped. Responses are flushed as they arrive so agent streams pass
// through unchanged.
type AgentProxy struct {
	proxies map[string]*httputil.ReverseProxy
}

// NewAgentProxy builds one reverse proxy per registered agent. A nil
// transport uses http.DefaultTransport.
func NewAgentProxy(reg *service.Registry, transport http.RoundTripper) (*AgentProxy, error) {
	p := &AgentProxy{proxies: make(map[string]*httputil.ReverseProxy)}
	for _, d := range reg.Agents() {
		target, err := url.Parse(d.BaseURL())
		if err != nil {
			return nil, err
		}
		prefix := "/agents/" + d.Name
		name := d.Name
		p.proxies[name] = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.Out.URL.Path = stripPrefix(pr.In.URL.Path, prefix)
				pr.Out.URL.RawPath = stripPrefix(pr.In.URL.EscapedPath(), prefix)
				pr.SetURL(target)
				pr.SetXForwarded()
			},
			Transport:     transport,
			FlushInterval: -1,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				slog.WarnContext(r.Context(), "agent proxy failed", "agent", name, "error", err)
				writeError(w, http.StatusBadGateway, "agent "+name+" unreachable")
			},
		}
	}
	return p, nil
}

// ServeHTTP implements http.Handler.
func (p *AgentProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	rp, ok := p.proxies[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown agent: "+name)
		return
	}
	rp.ServeHTTP(w, r)
}

func stripPrefix(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return "/"
	}
	return rest
}
