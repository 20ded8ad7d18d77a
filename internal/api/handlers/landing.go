package handlers

import "net/http"

const landingPage = `<html>
    <head>
        <title>F5-TTS API</title>
    </head>
    <body>
        <h1>F5-TTS API</h1>
        <p>Available endpoints:</p>
        <ul>
            <li><a href="/openapi.json">/openapi.json</a> - API description (OpenAPI 3)</li>
            <li><a href="/health">/health</a> - Health check endpoint</li>
            <li><a href="/readyz">/readyz</a> - Readiness check endpoint</li>
            <li><code>/tts/generate</code> - Text-to-Speech generation endpoint (POST)</li>
        </ul>
    </body>
</html>
`

func Landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(landingPage))
}
