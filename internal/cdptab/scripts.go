package cdptab

import (
	"encoding/json"

	"github.com/dgnsrekt/tabtitle/internal/tabid"
	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
)

// Runtime bindings the page calls back into.
const (
	titleBinding = "__tabTitleChanged"
	menuBinding  = "__tabTitleMenu"
	varsBinding  = "__tabTitleVars"
)

const (
	promptMessage = "Provide new title format:"
	menuLabel     = "Set Browser Tab Title"
	varsEvent     = "liebs-title-vars"
	varNodeClass  = "LiebsTitleVar"
	tabIDWidget   = "title_tab_id"
)

// titleText is the raw text of the <title> element. document.title is
// trimmed and whitespace-collapsed, so it cannot be compared with what was
// written.
const titleText = `((document.querySelector("head > title") || document.querySelector("title") || {}).textContent || "")`

// observerScript reports the raw <title> text through titleBinding after any
// mutation touching the <title> element. It runs on every new document.
const observerScript = `(() => {
  if (window.__tabTitleObserver) return;
  const titleText = () => ` + titleText + `;
  const inTitle = (node) => {
    for (let n = node; n; n = n.parentNode) {
      if (n.nodeName === "TITLE") return true;
    }
    return false;
  };
  const touchesTitle = (rec) =>
    inTitle(rec.target) ||
    Array.from(rec.addedNodes).some(inTitle) ||
    Array.from(rec.removedNodes).some((n) => n.nodeName === "TITLE");
  const observer = new MutationObserver((records) => {
    if (!records.some(touchesTitle)) return;
    if (typeof window.__tabTitleChanged === "function") {
      window.__tabTitleChanged(titleText());
    }
  });
  observer.observe(document, { subtree: true, childList: true, characterData: true });
  window.__tabTitleObserver = observer;
})()`

// hooksScript adds the canvas menu entry, forwards variable events from the
// editor's API socket and gives every title variable node a zero-size
// title_tab_id widget that serializes to window.tabTitleTabId. It returns
// false until the editor has loaded.
const hooksScript = `(() => {
  if (window.__tabTitleHooks) return true;
  const canvas = window.LGraphCanvas;
  if (!window.app || !window.app.graph || !canvas) return false;
  const menu = canvas.prototype.getCanvasMenuOptions;
  canvas.prototype.getCanvasMenuOptions = function () {
    const options = menu.apply(this, arguments);
    options.push({ content: "` + menuLabel + `", callback: () => window.__tabTitleMenu("") });
    return options;
  };
  const api = (window.comfyAPI && window.comfyAPI.api && window.comfyAPI.api.api) || window.app.api;
  if (api && api.addEventListener) {
    api.addEventListener("` + varsEvent + `", (event) => {
      window.__tabTitleVars(JSON.stringify(event.detail || {}));
    });
  }
  const addIdentityWidget = (node) => {
    if (!node || typeof node.addCustomWidget !== "function") return;
    if ((node.widgets || []).some((w) => w.name === "` + tabIDWidget + `")) return;
    node.addCustomWidget({
      type: "STRING",
      name: "` + tabIDWidget + `",
      computeSize: () => [0, 0],
      serializeValue: async () => window.tabTitleTabId || "",
    });
  };
  const isVarNode = (node) => node && (node.comfyClass === "` + varNodeClass + `" || node.type === "` + varNodeClass + `");
  const types = (window.LiteGraph && window.LiteGraph.registered_node_types) || {};
  const varNode = types["` + varNodeClass + `"];
  if (varNode && varNode.prototype) {
    const created = varNode.prototype.onNodeCreated;
    varNode.prototype.onNodeCreated = function () {
      const r = created ? created.apply(this, arguments) : undefined;
      addIdentityWidget(this);
      return r;
    };
  }
  (window.app.graph._nodes || []).filter(isVarNode).forEach(addIdentityWidget);
  window.__tabTitleHooks = true;
  return true;
})()`

const readTitleScript = titleText

// graphExtra evaluates to app.graph.extra, creating it when missing.
const graphExtra = `(() => {
  const g = window.app && window.app.graph;
  if (!g) throw new Error("graph not loaded");
  g.extra = g.extra || {};
  return g.extra;
})()`

const (
	formatKey = "liebsTabTitleFormat"
	varsKey   = "liebsTabTitleVars"
)

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func setTitleScript(text string) string {
	return "void (document.title = " + jsString(text) + ")"
}

func loadIdentityScript() string {
	return "window.sessionStorage.getItem(" + jsString(tabid.StorageKey) + ") || \"\""
}

func storeIdentityScript(id string) string {
	return "void window.sessionStorage.setItem(" + jsString(tabid.StorageKey) + ", " + jsString(id) + ")"
}

func readFormatScript() string {
	return "String(" + graphExtra + "." + formatKey + " || \"\")"
}

func writeFormatScript(format string) string {
	return "void (" + graphExtra + "." + formatKey + " = " + jsString(format) + ")"
}

func readVarsScript() string {
	return "JSON.stringify(" + graphExtra + "." + varsKey + " || {})"
}

func mergeVarsScript(updates titlefmt.Variables) string {
	return `void (() => {
  const extra = ` + graphExtra + `;
  extra.` + varsKey + ` = Object.assign(extra.` + varsKey + ` || {}, ` + jsJSON(updates) + `);
})()`
}

func changeScript(subType string) string {
	return `void document.dispatchEvent(new CustomEvent("litegraph:canvas", { detail: { subType: ` + jsString(subType) + ` } }))`
}

func promptScript(current string) string {
	return `(() => {
  const v = window.prompt(` + jsString(promptMessage) + `, ` + jsString(current) + `);
  return v === null ? null : String(v);
})()`
}

func publishIdentityScript(id string) string {
	return "void (window.tabTitleTabId = " + jsString(id) + ")"
}
