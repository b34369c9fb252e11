package cdp

// StatusPageHTML is a minimal anchor page used when an internal launch
// opens its very first tab before any navigation has been requested, so
// the tab shows something more useful than a blank about:blank while the
// caller decides where to go.
const StatusPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>codebrowser</title>
    <style>
        body { font-family: system-ui; padding: 40px; background: #1a1a2e; color: #eee; }
        .status { color: #4ecca3; font-size: 24px; }
        .info { color: #888; margin-top: 20px; }
    </style>
</head>
<body>
    <h1 class="status">codebrowser is connected</h1>
    <p class="info">Waiting for a navigate command.</p>
</body>
</html>`
