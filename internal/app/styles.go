package app

// Styles is the page CSS. Elements with the pulse class are the title
// stamps the client flashes after an update.
const Styles = `
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif;margin:0;background:#f4f4f5;color:#18181b}
.screen{max-width:420px;margin:2rem auto;padding:1rem;text-align:center}
hr{border:0;border-top:1px solid #d4d4d8;margin:.75rem 0}
h1{font-size:1.4rem;margin:.25rem 0}
h2{font-size:1.1rem;margin:.25rem 0}
.title{display:flex;justify-content:center;align-items:baseline;gap:2px}
.title .name{font-weight:600}
.updated-at{padding:0 3px;border-radius:3px;transition:background-color .5s ease-in-out,opacity .5s}
.updated-at.pulse{background:#ef4444;opacity:.75}
.group{margin:.5rem 0}
.group p,.region p{margin:.15rem 0}
.caption{font-size:.75rem;color:#52525b}
button{font:inherit;padding:.2rem .8rem;border-radius:6px;border:1px solid #a1a1aa;background:#fff;cursor:pointer}
`
