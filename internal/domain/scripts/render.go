package scripts

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"consent-app/internal/domain/websites"
)

// RenderOptions carries what the script needs beyond the website itself.
type RenderOptions struct {
	Endpoint   string // base URL the script posts consent events to
	Version    int
	WhiteLabel bool
}

type embedConfig struct {
	WebsiteID string                `json:"website_id"`
	Endpoint  string                `json:"endpoint"`
	Version   int                   `json:"version"`
	Branding  bool                  `json:"branding"`
	Banner    websites.BannerConfig `json:"banner"`
}

const scriptTemplate = `/* consent banner v%d */
(function () {
  var c = %s;
  var key = "consent_" + c.website_id;
  if (document.cookie.indexOf(key + "=") !== -1) return;
  function vid() {
    var v = localStorage.getItem("consent_vid");
    if (!v) { v = Math.random().toString(36).slice(2) + Date.now().toString(36); localStorage.setItem("consent_vid", v); }
    return v;
  }
  function send(action, cats) {
    document.cookie = key + "=" + action + ";path=/;max-age=31536000;SameSite=Lax";
    fetch(c.endpoint + "/v1/consent/" + c.website_id, {
      method: "POST", headers: {"Content-Type": "application/json"}, keepalive: true,
      body: JSON.stringify({action: action, categories: cats, visitor_id: vid()})
    });
    el.remove();
  }
  var b = c.banner, t = b.theme || {};
  var el = document.createElement("div");
  el.className = "cc-banner cc-" + b.position;
  el.style.cssText = "position:fixed;z-index:2147483647;padding:16px;font-family:sans-serif;" +
    "background:" + (t.background || "#ffffff") + ";color:" + (t.text || "#111111") + ";" +
    (b.position === "top" ? "top:0;left:0;right:0" : "bottom:0;left:0;right:0");
  el.innerHTML = "<strong></strong><p></p>";
  el.querySelector("strong").textContent = b.title;
  el.querySelector("p").textContent = b.message;
  var ok = document.createElement("button"), no = document.createElement("button");
  ok.textContent = b.accept_label; no.textContent = b.reject_label || "Reject";
  ok.style.background = t.primary || "#2563eb";
  ok.onclick = function () { send("accept_all", b.categories || []); };
  no.onclick = function () { send("reject_all", ["necessary"]); };
  el.appendChild(ok); el.appendChild(no);
  if (c.branding) { var s = document.createElement("small"); s.textContent = "Powered by ConsentApp"; el.appendChild(s); }
  if (b.custom_css) { var st = document.createElement("style"); st.textContent = b.custom_css; document.head.appendChild(st); }
  document.body.appendChild(el);
})();
`

// Render produces the embeddable script for a website. Branding is shown
// unless the plan allows white label and the banner asks to hide it.
func Render(w websites.Website, banner websites.BannerConfig, opts RenderOptions) (string, error) {
	cfg := embedConfig{
		WebsiteID: w.ID,
		Endpoint:  strings.TrimRight(opts.Endpoint, "/"),
		Version:   opts.Version,
		Branding:  !(opts.WhiteLabel && banner.HideBranding),
		Banner:    banner,
	}

	// json.Marshal escapes <, > and &, so the config cannot close the script tag.
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode embed config: %w", err)
	}
	return fmt.Sprintf(scriptTemplate, opts.Version, raw), nil
}

// Snippet is the tag site owners paste into their pages.
func Snippet(url string) string {
	return fmt.Sprintf(`<script src="%s" async></script>`, html.EscapeString(url))
}

func ObjectKey(websiteID string, version int) string {
	return fmt.Sprintf("scripts/%s/v%d.js", websiteID, version)
}
