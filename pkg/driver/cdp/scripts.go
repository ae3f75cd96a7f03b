package cdp

// queryScript finds the elements matching one strategy, tags each with a
// stable data-pageflow-id and returns [{id, desc}] in document order.
// Matching follows the same rules as the mock driver: role falls back to
// the implicit role of the tag, names and text compare whitespace-collapsed
// and case-insensitive unless exact, and text keeps only the innermost
// matching elements.
const queryScript = `(kind, value, name, exact, describe) => {
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
  const matches = (got, want) => {
    got = norm(got); want = norm(want);
    return exact ? got === want : got.toLowerCase().includes(want.toLowerCase());
  };
  const implicitRole = (el) => {
    const r = el.getAttribute('role');
    if (r !== null) return r;
    const tag = el.tagName.toLowerCase();
    switch (tag) {
      case 'button': return 'button';
      case 'a': return el.hasAttribute('href') ? 'link' : '';
      case 'input': {
        const t = (el.getAttribute('type') || 'text').toLowerCase();
        if (['button', 'submit', 'reset', 'image'].includes(t)) return 'button';
        if (t === 'checkbox' || t === 'radio') return t;
        return t === 'hidden' ? '' : 'textbox';
      }
      case 'textarea': return 'textbox';
      case 'select': return 'combobox';
      case 'h1': case 'h2': case 'h3': case 'h4': case 'h5': case 'h6': return 'heading';
      case 'ul': case 'ol': return 'list';
      case 'li': return 'listitem';
      case 'nav': return 'navigation';
      case 'main': return 'main';
      case 'dialog': return 'dialog';
      case 'form': return 'form';
      case 'img': return 'img';
    }
    return '';
  };
  const labelText = (el) => {
    if (el.labels && el.labels.length > 0) return el.labels[0].textContent;
    return '';
  };
  const accessibleName = (el) => {
    if (el.hasAttribute('aria-label')) return el.getAttribute('aria-label');
    const l = labelText(el);
    if (l) return l;
    if (['button', 'link', 'heading', 'listitem', 'checkbox', 'radio'].includes(implicitRole(el))) {
      if (norm(el.textContent)) return el.textContent;
      if (el.hasAttribute('value')) return el.getAttribute('value');
    }
    return el.getAttribute('placeholder') || el.getAttribute('title') || '';
  };

  let found = [];
  const all = () => Array.from(document.querySelectorAll('*'));
  switch (kind) {
    case 'testid':
      found = all().filter((el) => el.getAttribute('data-testid') === value);
      break;
    case 'css':
      found = Array.from(document.querySelectorAll(value));
      break;
    case 'role':
      found = all().filter((el) => implicitRole(el) === value && (!name || matches(accessibleName(el), name)));
      break;
    case 'label': {
      const set = new Set();
      for (const el of all()) {
        if (el.hasAttribute('aria-label') && matches(el.getAttribute('aria-label'), value)) set.add(el);
        if (el.tagName === 'LABEL' && matches(el.textContent, value) && el.control) set.add(el.control);
      }
      found = all().filter((el) => set.has(el));
      break;
    }
    case 'text': {
      const skip = new Set(['HTML', 'HEAD', 'BODY', 'SCRIPT', 'STYLE']);
      const rec = (el) => {
        let child = false;
        for (const c of el.children) if (rec(c)) child = true;
        if (skip.has(el.tagName)) return child;
        if (child) return true;
        if (matches(el.textContent, value)) { found.push(el); return true; }
        return false;
      };
      rec(document.documentElement);
      break;
    }
  }

  let seq = window.__pageflowSeq || 0;
  const out = found.map((el) => {
    if (!el.dataset.pageflowId) el.dataset.pageflowId = String(++seq);
    return {id: el.dataset.pageflowId, desc: describe(el)};
  });
  window.__pageflowSeq = seq;
  return out;
}`

// clearScript focuses the element and empties it. It returns false when
// the element is gone.
const clearScript = `(el) => {
  if (!el || !el.isConnected) return false;
  el.focus();
  if ('value' in el) {
    el.value = '';
    el.dispatchEvent(new Event('input', {bubbles: true}));
  } else if (el.isContentEditable) {
    el.textContent = '';
  }
  return true;
}`

// changeScript fires the change event inserted text does not.
const changeScript = `(el) => {
  if (el) el.dispatchEvent(new Event('change', {bubbles: true}));
  return true;
}`
