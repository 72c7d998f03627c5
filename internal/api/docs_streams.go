package api

const streamsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream and Bus - Tab Title</title>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 0 24px;
      height: 48px;
      display: flex;
      align-items: center;
      gap: 24px;
    }
    nav .brand { font-weight: 600; font-size: 15px; color: #e6edf3; }
    main { max-width: 860px; margin: 0 auto; padding: 24px 16px 64px; }
    h2 { color: #e6edf3; border-bottom: 1px solid #21262d; padding-bottom: 6px; margin-top: 36px; }
    code { background: #161b22; border-radius: 4px; padding: 1px 5px; font-size: 13px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 12px 16px; overflow-x: auto; }
    pre code { background: none; padding: 0; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
    th { background: #161b22; color: #e6edf3; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">Tab Title</span>
    <a href="/docs">API Reference</a>
  </nav>
  <main>
    <h2 id="events">Event stream</h2>
    <p>
      <code>GET /api/v1/events</code> streams Server-Sent Events. Narrow the stream with
      <code>?feeds=title,identity,closed</code>, <code>?tab=&lt;target id&gt;</code> and
      <code>?title_tab_id=&lt;id&gt;</code>. A new client first receives the latest
      title and identity event of every matching tab. Slow clients have events dropped.
    </p>
    <table>
      <tr><th>Feed</th><th>Sent when</th></tr>
      <tr><td><code>title</code></td><td>a tab rendered its title</td></tr>
      <tr><td><code>identity</code></td><td>a duplicated tab picked a new identity</td></tr>
      <tr><td><code>closed</code></td><td>a tab reloaded or detached</td></tr>
    </table>
    <pre><code>id: 42
event: title
data: {"kind":"title","tab":"8F1C...","title_tab_id":"1718000000000_3f2a9c1e","real_title":"ComfyUI","title":"ComfyUI - step 12"}</code></pre>
    <pre><code>curl -N http://127.0.0.1:8190/api/v1/events?feeds=title</code></pre>

    <h2 id="bus">Broadcast channel</h2>
    <p>
      <code>GET /bus</code> upgrades to a WebSocket joined to the <code>liebs-title</code>
      channel. Every text frame is one JSON message and is delivered to every other
      member. Another daemon joins with <code>TABTITLE_BUS_URL=ws://host:port/bus</code>.
    </p>
    <table>
      <tr><th>Topic</th><th>Frame</th></tr>
      <tr><td>request</td><td><code>{"topic":"getTitleTabId"}</code></td></tr>
      <tr><td>reply</td><td><code>{"topic":"usingTitleTabId","titleTabId":"1718000000000_3f2a9c1e"}</code></td></tr>
    </table>
    <p>
      A tab that receives a reply carrying its own identity was duplicated. It picks a
      new identity and asks again.
    </p>
  </main>
</body>
</html>`
