package router

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/guard"
)

const layout = `<!doctype html>
<html>
<head><title>{{.Title}} - Admin Dashboard</title></head>
<body>
{{if .User}}<nav>
  <a href="/">Dashboard</a>
  {{if eq (index .Caps "manager_tools") "render"}}<a href="/reports">Reports</a>{{end}}
  {{if eq (index .Caps "admin_nav") "render"}}<a href="/admin">Admin</a>{{end}}
  <a href="/settings">Settings</a>
  <span>{{.User.FullName}}{{if .Role}} ({{.Role}}){{end}}</span>
  <button onclick="fetch('/auth/signout', {method: 'POST'}).then(() => window.location = '/login')">Sign out</button>
</nav>{{end}}
<main>
<h1>{{.Title}}</h1>
{{if eq .Page "login"}}
  <form id="signin" data-next="{{.Next}}">
    <label>Email <input type="email" name="email" required></label>
    <label>Password <input type="password" name="password" required></label>
    <button>Sign in</button>
    <p id="error"></p>
  </form>
  <script>
  document.getElementById("signin").addEventListener("submit", async (e) => {
    e.preventDefault();
    const f = e.target;
    const res = await fetch("/auth/signin", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({email: f.email.value, password: f.password.value}),
    });
    if (res.ok) { window.location = f.dataset.next; return; }
    document.getElementById("error").textContent = (await res.json()).message || "Sign in failed";
  });
  </script>
{{else if eq .Page "dashboard"}}
  <p>Welcome back{{with .User}}, {{.FullName}}{{end}}.</p>
  {{if .Permissions}}<ul>{{range .Permissions}}<li>{{.}}</li>{{end}}</ul>
  {{else}}<p>Your account has no permissions yet. Ask an administrator to assign a role.</p>{{end}}
{{else if eq .Page "admin"}}
  <p>Manage roles, permissions and user assignments through <code>/api/admin</code>.</p>
{{else if eq .Page "reports"}}
  <p>Reports are available to managers and administrators.</p>
{{else if eq .Page "settings"}}
  {{with .User}}<p>{{.Email}}</p>{{end}}
  {{if eq (index .Caps "manage_users") "fallback"}}<p>User management requires additional permissions.</p>{{end}}
{{end}}
</main>
</body>
</html>`

type pageData struct {
	Page        string
	Title       string
	User        any
	Role        string
	Permissions []string
	Caps        map[string]string
	Next        string
}

type pages struct {
	tmpl         *template.Template
	capabilities map[string]guard.Visibler
}

func newPages(capabilities map[string]guard.Visibler) pages {
	return pages{
		tmpl:         template.Must(template.New("layout").Parse(layout)),
		capabilities: capabilities,
	}
}

func (p pages) Login(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	// only local paths, never protocol-relative URLs
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	p.render(w, r, pageData{Page: "login", Title: "Sign in", Next: next})
}

func (p pages) Dashboard(w http.ResponseWriter, r *http.Request) {
	p.renderState(w, r, "dashboard", "Dashboard")
}

func (p pages) Settings(w http.ResponseWriter, r *http.Request) {
	p.renderState(w, r, "settings", "Settings")
}

func (p pages) Reports(w http.ResponseWriter, r *http.Request) {
	p.renderState(w, r, "reports", "Reports")
}

func (p pages) Admin(w http.ResponseWriter, r *http.Request) {
	p.renderState(w, r, "admin", "Administration")
}

func (p pages) renderState(w http.ResponseWriter, r *http.Request, page, title string) {
	st, _ := guard.StateFromContext(r.Context())
	p.render(w, r, stateData(st, page, title, guard.Capabilities(st, p.capabilities)))
}

func stateData(st authstate.State, page, title string, caps map[string]string) pageData {
	data := pageData{Page: page, Title: title, Permissions: st.Permissions, Caps: caps}
	if st.User != nil {
		data.User = st.User
	}
	if st.Role != nil {
		data.Role = st.Role.DisplayName
		if data.Role == "" {
			data.Role = st.Role.Name
		}
	}
	return data
}

func (p pages) render(w http.ResponseWriter, r *http.Request, data pageData) {
	if data.Caps == nil {
		data.Caps = map[string]string{}
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		slog.Error("Failed rendering page", "page", data.Page, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	render.HTML(w, r, buf.String())
}

func loginPath(cfg guard.Config) string {
	if cfg.LoginPath == "" {
		return guard.DefaultConfig().LoginPath
	}
	return cfg.LoginPath
}
