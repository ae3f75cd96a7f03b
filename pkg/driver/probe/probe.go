// Package probe holds the in-page scripts the browser drivers evaluate
// against an element, and decodes their results.
package probe

import (
	"encoding/json"
	"fmt"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// StateScript observes an element's actionability in one round trip. It is
// a function expression taking the element.
const StateScript = `(el) => {
  if (!el || !el.isConnected) return {attached: false};
  const r = el.getBoundingClientRect();
  const style = window.getComputedStyle(el);
  const visible = r.width > 0 && r.height > 0 &&
    style.visibility !== 'hidden' && style.display !== 'none' && style.opacity !== '0';
  const disabled = el.disabled === true ||
    el.closest('fieldset[disabled]') !== null ||
    el.getAttribute('aria-disabled') === 'true';
  const tag = el.tagName.toLowerCase();
  const editable = !disabled && (el.isContentEditable ||
    ((tag === 'input' || tag === 'textarea' || tag === 'select') && !el.readOnly));
  let receives = false;
  if (visible) {
    const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
    receives = hit !== null && (hit === el || el.contains(hit));
  }
  return {
    attached: true, visible: visible, enabled: !disabled, editable: editable,
    receivesEvents: receives, x: r.left, y: r.top, width: r.width, height: r.height,
  };
}`

// DescribeScript renders an element's opening tag with its identifying
// attributes, e.g. <button id="save" data-testid="save-button">.
const DescribeScript = `(el) => {
  if (!el) return '<detached>';
  let s = '<' + el.tagName.toLowerCase();
  for (const key of ['id', 'data-testid', 'name', 'class']) {
    const v = el.getAttribute(key);
    if (v !== null) s += ' ' + key + '=' + JSON.stringify(v);
  }
  return s + '>';
}`

type state struct {
	Attached       bool    `json:"attached"`
	Visible        bool    `json:"visible"`
	Enabled        bool    `json:"enabled"`
	Editable       bool    `json:"editable"`
	ReceivesEvents bool    `json:"receivesEvents"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
}

// Decode converts a StateScript result into a core.ElementState. v is
// either the raw JSON or the value a driver already decoded it into
// (typically map[string]interface{}).
func Decode(v interface{}) (core.ElementState, error) {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case json.RawMessage:
		raw = t
	case nil:
		return core.ElementState{}, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return core.ElementState{}, fmt.Errorf("probe: %w", err)
		}
		raw = b
	}

	var s state
	if err := json.Unmarshal(raw, &s); err != nil {
		return core.ElementState{}, fmt.Errorf("probe: decode state: %w", err)
	}
	if !s.Attached {
		return core.ElementState{}, nil
	}
	return core.ElementState{
		Attached:       true,
		Visible:        s.Visible,
		Enabled:        s.Enabled,
		Editable:       s.Editable,
		ReceivesEvents: s.ReceivesEvents,
		Bounds:         core.Bounds{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height},
	}, nil
}
