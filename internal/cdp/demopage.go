package cdp

// DemoPageHTML is a self-contained page exercising the core's input,
// console-capture, and SPA-navigation features end to end: a button click
// and a text field for TypeText/Click, a history.pushState link for the
// navigation monitor's same-document detection, and console calls at
// several levels for console-log capture.
const DemoPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>codebrowser demo</title>
    <style>
        * { box-sizing: border-box; }
        body {
            font-family: system-ui, -apple-system, sans-serif;
            padding: 40px;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #eee;
            min-height: 100vh;
            margin: 0;
        }
        .container { max-width: 700px; margin: 0 auto; }
        h1 { color: #4ecca3; margin-bottom: 10px; }
        .card {
            background: rgba(255,255,255,0.05);
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 20px;
        }
        input[type=text] { padding: 8px; width: 100%; font-size: 14px; }
        button {
            background: #4ecca3; border: none; border-radius: 4px;
            padding: 10px 16px; font-size: 14px; cursor: pointer;
        }
        #click-count { font-size: 32px; color: #4ecca3; font-weight: bold; }
        a.spa-link { color: #74b9ff; }
    </style>
</head>
<body>
    <div class="container">
        <h1>codebrowser demo</h1>

        <div class="card">
            <h2>Click target</h2>
            <div id="click-count">0</div>
            <button id="click-me">Click me</button>
        </div>

        <div class="card">
            <h2>Type target</h2>
            <input type="text" id="type-target" placeholder="type here">
        </div>

        <div class="card">
            <h2>SPA navigation</h2>
            <a class="spa-link" id="spa-link" href="#fragment">Push a history entry</a>
            <p id="spa-status">current path: <span id="spa-path">/</span></p>
        </div>
    </div>

    <script>
        let clicks = 0;
        document.getElementById('click-me').addEventListener('click', () => {
            clicks++;
            document.getElementById('click-count').textContent = clicks;
            console.log('[demo] click #' + clicks);
        });

        document.getElementById('type-target').addEventListener('input', (e) => {
            console.log('[demo] typed: ' + e.target.value);
        });

        document.getElementById('spa-link').addEventListener('click', (e) => {
            e.preventDefault();
            const path = '/page-' + Math.floor(Math.random() * 1000);
            history.pushState({}, '', path);
            document.getElementById('spa-path').textContent = path;
            console.log('[demo] pushState to ' + path);
        });

        console.info('[demo] page ready');
        console.warn('[demo] this is a warning, not an error');
    </script>
</body>
</html>`
