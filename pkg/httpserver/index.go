package httpserver

import "net/http"

// handleIndex serves the single-page dashboard. The page bootstraps from
// /api/state and then follows /ws for live pushes.
func handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexHTML))
}

//nolint:lll
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>arbscan</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
  :root { --bg:#0d1117; --panel:#161b22; --line:#30363d; --fg:#c9d1d9; --dim:#8b949e; --green:#3fb950; --red:#f85149; --amber:#d29922; }
  * { box-sizing: border-box; }
  body { margin:0; background:var(--bg); color:var(--fg); font:14px/1.5 "SF Mono", Menlo, Consolas, monospace; }
  header { display:flex; align-items:baseline; gap:16px; padding:16px 24px; border-bottom:1px solid var(--line); }
  h1 { margin:0; font-size:18px; }
  #conn { font-size:12px; color:var(--dim); }
  #conn.live { color:var(--green); }
  #stats { display:flex; gap:24px; padding:12px 24px; color:var(--dim); font-size:12px; flex-wrap:wrap; }
  #stats b { color:var(--fg); }
  .venue { padding:1px 8px; border:1px solid var(--line); border-radius:10px; }
  .venue.OK { color:var(--green); border-color:var(--green); }
  .venue.ERROR { color:var(--red); border-color:var(--red); }
  .venue.DISABLED { color:var(--dim); text-decoration:line-through; }
  table { width:100%; border-collapse:collapse; }
  th, td { padding:8px 12px; text-align:left; border-bottom:1px solid var(--line); }
  th { color:var(--dim); font-weight:normal; font-size:12px; text-transform:uppercase; }
  td.num { text-align:right; font-variant-numeric:tabular-nums; }
  tr.fresh td { background:rgba(63,185,80,.08); }
  .edge { color:var(--green); font-weight:bold; }
  .dir { color:var(--amber); font-size:12px; }
  .title { max-width:360px; overflow:hidden; text-overflow:ellipsis; white-space:nowrap; }
  #empty { padding:48px; text-align:center; color:var(--dim); }
</style>
</head>
<body>
<header>
  <h1>arbscan</h1>
  <span id="conn">connecting</span>
</header>
<div id="stats"></div>
<table id="opps" style="display:none">
  <thead>
    <tr>
      <th>YES leg</th><th>NO leg</th><th>Direction</th>
      <th class="num">Combined</th><th class="num">Edge</th>
      <th class="num">Size</th><th class="num">Conf</th><th class="num">Seen</th>
    </tr>
  </thead>
  <tbody></tbody>
</table>
<div id="empty">no opportunities above threshold</div>
<script>
(function () {
  "use strict";

  var conn = document.getElementById("conn");
  var stats = document.getElementById("stats");
  var table = document.getElementById("opps");
  var tbody = table.querySelector("tbody");
  var empty = document.getElementById("empty");
  var freshKeys = {};

  function esc(s) {
    var d = document.createElement("div");
    d.textContent = s == null ? "" : String(s);
    return d.innerHTML;
  }

  function legs(o) {
    if (o.direction === "A_YES_B_NO") { return [o.market_a, o.market_b]; }
    return [o.market_b, o.market_a];
  }

  function legCell(m, side) {
    var ask = side === "yes" ? m.yes_ask : m.no_ask;
    var html = "<b>" + esc(m.venue) + "</b> " +
      '<span class="title" title="' + esc(m.title) + '">' + esc(m.title) + "</span>" +
      " @ " + Number(ask).toFixed(4);
    if (side === "no" && m.derived) { html += " <small>(derived)</small>"; }
    return html;
  }

  function ago(ts) {
    var s = Math.max(0, (Date.now() - new Date(ts).getTime()) / 1000);
    if (s < 90) { return Math.round(s) + "s"; }
    if (s < 5400) { return Math.round(s / 60) + "m"; }
    return Math.round(s / 3600) + "h";
  }

  function key(o) {
    return o.market_a.venue + ":" + o.market_a.venue_market_id + "|" +
      o.market_b.venue + ":" + o.market_b.venue_market_id + "|" + o.direction;
  }

  function renderStats(scan) {
    if (!scan) { stats.innerHTML = "waiting for first scan"; return; }
    var html = "<span>scans <b>" + esc(scan.scan_count) + "</b></span>" +
      "<span>last <b>" + esc(scan.last_scan_ms) + "ms</b></span>" +
      "<span>threshold <b>" + Number(scan.threshold_pct).toFixed(2) + "%</b></span>";
    var venues = scan.venues || {};
    Object.keys(venues).sort().forEach(function (v) {
      var st = venues[v];
      html += '<span class="venue ' + esc(st.status) + '" title="' + esc(st.error || "") + '">' +
        esc(v) + " " + esc(st.markets) + "</span>";
    });
    stats.innerHTML = html;
  }

  function renderOpps(opps) {
    opps = opps || [];
    if (opps.length === 0) {
      table.style.display = "none";
      empty.style.display = "block";
      return;
    }
    table.style.display = "table";
    empty.style.display = "none";

    var rows = opps.map(function (o) {
      var pair = legs(o);
      var k = key(o);
      var cls = freshKeys[k] ? ' class="fresh"' : "";
      return "<tr" + cls + ">" +
        "<td>" + legCell(pair[0], "yes") + "</td>" +
        "<td>" + legCell(pair[1], "no") + "</td>" +
        '<td class="dir">' + esc(o.direction) + "</td>" +
        '<td class="num">' + Number(o.combined_price).toFixed(4) + "</td>" +
        '<td class="num edge">' + Number(o.edge_pct).toFixed(2) + "%</td>" +
        '<td class="num">' + (o.ask_size_min ? Number(o.ask_size_min).toFixed(0) : "-") + "</td>" +
        '<td class="num">' + Number(o.confidence).toFixed(2) + "</td>" +
        '<td class="num">' + ago(o.first_seen_at) + "</td>" +
        "</tr>";
    });
    tbody.innerHTML = rows.join("");
  }

  function applyState(state) {
    renderStats(state.scan);
    renderOpps(state.opportunities);
  }

  function refresh() {
    fetch("/api/state").then(function (r) { return r.json(); }).then(applyState);
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function () {
      conn.textContent = "live";
      conn.className = "live";
    };
    ws.onmessage = function (msg) {
      var evt = JSON.parse(msg.data);
      if (evt.type === "state") {
        applyState(evt.data);
      } else if (evt.type === "opportunity" && evt.data) {
        freshKeys[key(evt.data)] = true;
        setTimeout(function () { delete freshKeys[key(evt.data)]; }, 30000);
        refresh();
      } else {
        refresh();
      }
    };
    ws.onclose = function () {
      conn.textContent = "reconnecting";
      conn.className = "";
      setTimeout(connect, 3000);
    };
  }

  refresh();
  connect();
  setInterval(refresh, 30000);
})();
</script>
</body>
</html>
`
