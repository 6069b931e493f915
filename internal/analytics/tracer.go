package analytics

import (
	"fmt"
	"strings"
)

const tracerMarker = "<!-- boltdiy analytics tracer -->"

// TracerScript returns a self-contained script block that reports page
// views for app to <origin>/analytics. The session id is minted once per
// browser session.
func TracerScript(origin, app string) string {
	return fmt.Sprintf(`%s
<script>
(function () {
  var key = "boltdiy_sid";
  var sid = sessionStorage.getItem(key);
  if (!sid) {
    sid = Math.random().toString(36).slice(2) + Date.now().toString(36);
    sessionStorage.setItem(key, sid);
  }
  var url = %q + "/analytics?app=" + encodeURIComponent(%q) +
    "&path=" + encodeURIComponent(location.pathname) +
    "&sid=" + encodeURIComponent(sid) +
    "&ts=" + Date.now();
  if (navigator.sendBeacon) {
    navigator.sendBeacon(url);
  } else {
    fetch(url, { method: "POST", keepalive: true }).catch(function () {});
  }
})();
</script>`, tracerMarker, origin, app)
}

// InjectTracer inserts the tracer script into an HTML document, just
// before </body>, falling back to </html>, then to appending. Injecting
// twice is a no-op.
func InjectTracer(html, origin, app string) string {
	if strings.Contains(html, tracerMarker) {
		return html
	}
	script := TracerScript(origin, app) + "\n"

	if idx := strings.LastIndex(html, "</body>"); idx >= 0 {
		return html[:idx] + script + html[idx:]
	}
	if idx := strings.LastIndex(html, "</html>"); idx >= 0 {
		return html[:idx] + script + html[idx:]
	}
	return html + "\n" + script
}
