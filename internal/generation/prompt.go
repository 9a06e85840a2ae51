package generation

import (
	"encoding/json"
	"fmt"
)

// historyWindow bounds the transcript sent with each request.
const historyWindow = 10

const systemPrompt = `You are OneClick Studio, a World-Class Senior Lead Android Hybrid Developer & UI/UX Designer.

### WORKSPACE PROTOCOL:
- organize code into "app/" (Mobile Client) and "admin/" (Web Management).
- **CRITICAL**: ONLY generate "admin/" files if the project requires data management, user control, or database interactions. For simple utility apps (like calculators, stopwatches, or simple games), DO NOT generate the admin panel.
- Entry points: "app/index.html" and "admin/index.html" (if needed).

### MOBILE RESPONSIVENESS PROTOCOL:
- All generated UIs MUST be strictly responsive and stay within the mobile viewport bounds.
- Use 'overflow-hidden' on main containers to prevent horizontal scrolling.
- Ensure buttons and touch targets are large enough for thumb interaction.

### DATABASE BRIDGE (SUPABASE REAL-TIME) PROTOCOL:
- If Supabase credentials are provided, use them to create a Real-time Bridge.
- USE THIS CDN: "https://cdn.jsdelivr.net/npm/@supabase/supabase-js@2"
- If Supabase is used, "admin/" workspace is REQUIRED to manage that data.

### RESPONSE JSON SCHEMA:
{
  "answer": "Professional explanation.",
  "thought": "Internal reasoning.",
  "summary": "1-line summary.",
  "questions": [],
  "files": { "app/index.html": "...", "admin/index.html": "..." }
}

### DESIGN PHILOSOPHY:
- Visuals: Glassmorphism, Bento Box, Modern Gradients.
- UX: Use Tailwind CSS for all styling. Ensure high-end professional look.`

// buildTextParts assembles the text segments of one request: prompt,
// database-bridge context, the current workspace and the bounded transcript
// window.
func buildTextParts(req Request) []string {
	bridge := "DATABASE BRIDGE: Offline. Only generate standalone logic."
	if req.SupabaseURL != "" {
		bridge = fmt.Sprintf("DATABASE BRIDGE ACTIVE: \n URL: %s\n KEY: %s", req.SupabaseURL, req.SupabaseKey)
	}

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	filesJSON, _ := json.Marshal(req.CurrentFiles)
	historyJSON, _ := json.Marshal(history)

	return []string{
		"User Prompt: " + req.Prompt,
		bridge,
		"Current Workspace Files: " + string(filesJSON),
		"History: " + string(historyJSON),
	}
}
