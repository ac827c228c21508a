package browser

import (
	"fmt"
	"strings"
)

const maxElements = 200

// Element is an interactive element seen in a snapshot.
type Element struct {
	ID       string `json:"id"`
	Tag      string `json:"tag"`
	Role     string `json:"role,omitempty"`
	Text     string `json:"text,omitempty"`
	Href     string `json:"href,omitempty"`
	Selector string `json:"selector"`
}

const snapshotJS = `(() => {
  const query = 'a[href], button, input:not([type=hidden]), select, textarea, summary, [role="button"], [role="link"], [role="option"], [role="tab"], [role="radio"], [role="checkbox"], [onclick]';
  document.querySelectorAll('[data-shopcheck-id]').forEach(el => el.removeAttribute('data-shopcheck-id'));
  const out = [];
  let n = 0;
  for (const el of document.querySelectorAll(query)) {
    const r = el.getBoundingClientRect();
    const st = window.getComputedStyle(el);
    if (r.width === 0 || r.height === 0 || st.visibility === 'hidden' || st.display === 'none') continue;
    n++;
    const id = 'e' + n;
    el.setAttribute('data-shopcheck-id', id);
    const text = (el.innerText || el.value || el.getAttribute('aria-label') || el.getAttribute('title') || el.getAttribute('alt') || '')
      .replace(/\s+/g, ' ').trim().slice(0, 120);
    out.push({
      id: id,
      tag: el.tagName.toLowerCase(),
      role: el.getAttribute('role') || '',
      text: text,
      href: el.getAttribute('href') || '',
      selector: '[data-shopcheck-id=' + id + ']',
    });
    if (out.length >= %d) break;
  }
  return out;
})()`

func snapshotScript(limit int) string {
	return fmt.Sprintf(snapshotJS, limit)
}

// FormatElements renders a snapshot as one line per element for a prompt.
func FormatElements(elems []Element) string {
	if len(elems) == 0 {
		return "(no interactive elements visible)"
	}
	var b strings.Builder
	for _, e := range elems {
		fmt.Fprintf(&b, "- selector=%s <%s>", e.Selector, e.Tag)
		if e.Role != "" {
			fmt.Fprintf(&b, " role=%s", e.Role)
		}
		if e.Text != "" {
			fmt.Fprintf(&b, " %q", e.Text)
		}
		if e.Href != "" {
			fmt.Fprintf(&b, " href=%s", e.Href)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
