package api

import "net/http"

const uiHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Vector Notes</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; padding: 2rem 0; }
  .card { max-width: 820px; width: 92%; margin: 0 auto 1.5rem; background: #1e293b; border-radius: 12px; padding: 2rem; box-shadow: 0 25px 50px rgba(0,0,0,0.4); }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f8fafc; }
  .subtitle { color: #94a3b8; margin-bottom: 1rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.75rem; }
  input, textarea, select { width: 100%; background: #0f172a; color: #e2e8f0; border: 1px solid #334155; border-radius: 8px; padding: 0.6rem; margin-bottom: 0.75rem; font: inherit; }
  textarea { min-height: 140px; font-family: "SF Mono", "Fira Code", Menlo, monospace; font-size: 0.85rem; }
  button { background: #38bdf8; color: #0f172a; border: 0; border-radius: 8px; padding: 0.5rem 1rem; font-weight: 600; cursor: pointer; margin-right: 0.5rem; }
  button.danger { background: #f87171; }
  button.small { padding: 0.2rem 0.6rem; font-size: 0.8rem; }
  .row { display: flex; gap: 0.75rem; }
  .row > * { flex: 1; }
  .result { border: 1px solid #334155; border-radius: 8px; padding: 0.75rem; margin-top: 0.75rem; white-space: pre-wrap; }
  .meta { color: #a5b4fc; font-size: 0.8rem; margin-bottom: 0.35rem; font-family: "SF Mono", monospace; }
  #status { color: #94a3b8; min-height: 1.2rem; }
  #status.error { color: #f87171; }
</style>
</head>
<body>
<div class="card">
  <h1>Vector Notes</h1>
  <p class="subtitle">Personal notes stored as searchable chunks.</p>
  <p id="status"></p>
  <div class="row">
    <select id="collections"></select>
    <input id="newName" placeholder="or a new collection name">
  </div>
  <button onclick="refresh()">Refresh</button>
  <button class="danger" onclick="deleteCollection()">Delete collection</button>
</div>

<div class="card">
  <div class="section-title">Write</div>
  <textarea id="content" placeholder="Markdown or plain text"></textarea>
  <div class="row">
    <input id="chunkSize" type="number" min="0" placeholder="max chunk size (default from config)">
  </div>
  <button onclick="store()">Store</button>
  <button onclick="update()">Replace content</button>
</div>

<div class="card">
  <div class="section-title">Search</div>
  <div class="row">
    <input id="query" placeholder="What are you looking for?">
    <input id="topN" type="number" min="1" value="5">
  </div>
  <button onclick="search()">Search</button>
  <button onclick="listChunks()">List chunks</button>
  <div id="results"></div>
</div>

<script>
const base = "/user_operations/";

function currentName() {
  const typed = document.getElementById("newName").value.trim();
  return typed || document.getElementById("collections").value;
}

function setStatus(text, isError) {
  const el = document.getElementById("status");
  el.textContent = text;
  el.className = isError ? "error" : "";
}

async function call(method, path, body) {
  const opts = { method, headers: { "Content-Type": "application/json" } };
  if (body !== undefined) opts.body = JSON.stringify(body);
  const res = await fetch(base + path, opts);
  const payload = await res.json();
  setStatus(payload.message, payload.status !== "success");
  return payload;
}

function render(items, withScore) {
  const out = document.getElementById("results");
  out.replaceChildren();
  for (const item of items || []) {
    const div = document.createElement("div");
    div.className = "result";
    const meta = document.createElement("div");
    meta.className = "meta";
    let label = String(item.id);
    if (withScore) label += "  score " + item.relevance_score.toFixed(3);
    if (item.section) label += "  " + item.section;
    meta.textContent = label;
    const del = document.createElement("button");
    del.className = "small danger";
    del.textContent = "delete";
    del.onclick = () => deleteChunk(item.id);
    meta.append(" ", del);
    const text = document.createElement("div");
    text.textContent = item.content;
    div.append(meta, text);
    out.append(div);
  }
}

async function refresh() {
  const payload = await call("GET", "list_collections");
  const select = document.getElementById("collections");
  const previous = select.value;
  select.replaceChildren();
  for (const name of payload.data || []) {
    const opt = document.createElement("option");
    opt.value = name;
    opt.textContent = name;
    select.append(opt);
  }
  if (previous) select.value = previous;
}

async function store() {
  const size = parseInt(document.getElementById("chunkSize").value || "0", 10);
  await call("POST", "comprehensive_store_document", {
    collection_name: currentName(),
    content: document.getElementById("content").value,
    max_chunk_size: size,
  });
  document.getElementById("newName").value = "";
  await refresh();
}

async function update() {
  await call("POST", "update_document", {
    collection_name: currentName(),
    content: document.getElementById("content").value,
  });
  await refresh();
}

async function search() {
  const payload = await call("PUT", "search", {
    collection_name: currentName(),
    query: document.getElementById("query").value,
    top_n: parseInt(document.getElementById("topN").value || "5", 10),
  });
  render(payload.data, true);
}

async function listChunks() {
  const payload = await call("PUT", "list_documents", { collection_name: currentName() });
  render(payload.data, false);
}

async function deleteChunk(id) {
  await call("DELETE", "delete_documents", { collection_name: currentName(), document_ids: [id] });
  await listChunks();
}

async function deleteCollection() {
  const name = currentName();
  if (!name || !confirm("Delete every note in " + name + "?")) return;
  await call("DELETE", "delete_collection", { collection_name: name });
  document.getElementById("results").replaceChildren();
  await refresh();
}

refresh();
</script>
</body>
</html>`

// NewUIHandler returns an HTTP handler that serves the notes page at /.
func NewUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(uiHTML))
	}
}
