package ai

import "fmt"

// AnalysisPrompt is sent alongside a design image, and on its own when no
// image or URL is available.
const AnalysisPrompt = `You are an expert UI/UX design auditor. Analyze this design and identify 6-10 specific design issues.

Return ONLY a valid JSON array — no markdown, no extra text. Each item must follow this exact shape:
{
  "title": "Short issue title (max 60 chars)",
  "category": "Accessibility" | "UX" | "UI" | "Layout" | "Content",
  "severity": "High" | "Medium" | "Low",
  "explanation": "2-3 sentences explaining what is wrong and why it matters.",
  "howToFix": "2-3 sentences with concrete steps to fix this issue.",
  "suggestion": "One concrete implementation suggestion.",
  "x": <number 5-95, estimated x% position in the image where this issue appears>,
  "y": <number 5-95, estimated y% position in the image where this issue appears>
}

Focus on: contrast ratios, spacing consistency, typography hierarchy, accessibility (WCAG), touch target sizes, visual hierarchy, component consistency, and content clarity.`

const urlPromptTemplate = `You are an expert UI/UX design auditor. Analyze the website at URL: %s

Based on common patterns for this type of website and what you know about it, identify 6-10 likely design issues.

Return ONLY a valid JSON array — no markdown, no extra text. Each item must follow:
{
  "title": "Short issue title (max 60 chars)",
  "category": "Accessibility" | "UX" | "UI" | "Layout" | "Content",
  "severity": "High" | "Medium" | "Low",
  "explanation": "2-3 sentences explaining what might be wrong.",
  "howToFix": "2-3 sentences with steps to fix this.",
  "suggestion": "One concrete implementation suggestion.",
  "x": <number 5-95>,
  "y": <number 5-95>
}`

// URLPrompt builds the text-only prompt for a live website.
func URLPrompt(url string) string {
	return fmt.Sprintf(urlPromptTemplate, url)
}
