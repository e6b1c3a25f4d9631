package patterns

import "github.com/nocsi/drip-api-sub008/pkg/models"

// entry is the literal form of a built-in signature
type entry struct {
	id          string
	name        string
	category    string
	pattern     string
	description string
	severity    models.Severity
	score       int
	level       Level
}

var promptInjectionPatterns = []entry{
	{
		id:          "PI-001",
		name:        "Hidden Comment Directive",
		category:    "hidden_instruction",
		pattern:     `<!--(?:[^-]|-[^-])*?(?:ignore|disregard|system\s+prompt|you\s+are\s+now|instructions?\s+for\s+(?:the\s+)?(?:ai|assistant|model|llm|agent))(?:[^-]|-[^-])*?-->`,
		description: "Instructions for a model hidden in an HTML comment",
	},
	{
		id:          "PI-002",
		name:        "Chat Template Token",
		category:    "role_injection",
		pattern:     `\[/?(?:INST|SYS)\]|<\|im_start\|>|<\|(?:system|endoftext)\|>|<</?SYS>>`,
		description: "Raw chat template control tokens",
	},
	{
		id:          "PI-003",
		name:        "Instruction Reset",
		category:    "instruction_override",
		pattern:     `\bignore\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|preceding)\s+(?:instructions|prompts?|messages|context)`,
		description: "Attempts to reset prior instructions",
	},
	{
		id:          "PI-004",
		name:        "System Prompt Extraction",
		category:    "prompt_leak",
		pattern:     `\b(?:reveal|print|show|output|repeat)\s+(?:your|the)\s+(?:system\s+prompt|initial\s+instructions|hidden\s+instructions)`,
		description: "Attempts to extract the system prompt",
		severity:    models.SeverityMedium,
		score:       6,
	},
	{
		id:          "PI-005",
		name:        "Role Header",
		category:    "role_injection",
		pattern:     `(?m)^\s*(?:system|assistant)\s*:\s*\S`,
		description: "Line impersonating a system or assistant turn",
		severity:    models.SeverityMedium,
		score:       5,
		level:       LevelStrict,
	},
}

// XSS attack patterns
var xssPatterns = []entry{
	{
		id:          "XSS-001",
		name:        "Script Tag",
		category:    "script_injection",
		pattern:     `<script\b[^>]*>`,
		description: "Inline script element",
	},
	// Event handlers in attributes
	{
		id:          "XSS-002",
		name:        "Event Handler XSS",
		category:    "event_handler",
		pattern:     `<[^>]+\s+on(?:load|error|click|mouseover|mouseout|focus|blur|submit|change|keyup|keydown|keypress|toggle|animationstart)\s*=`,
		description: "Potential XSS via inline event handler attribute",
	},
	// JavaScript in href/src or markdown link targets
	{
		id:          "XSS-003",
		name:        "JavaScript Protocol XSS",
		category:    "dangerous_url",
		pattern:     `(?:(?:href|src|action|formaction)\s*=\s*["']?|\]\(\s*<?)\s*javascript\s*:`,
		description: "JavaScript protocol in a link or attribute",
	},
	{
		id:          "XSS-004",
		name:        "Data URI HTML",
		category:    "dangerous_url",
		pattern:     `(?:(?:href|src)\s*=\s*["']?|\]\(\s*<?)\s*data\s*:\s*text/html`,
		description: "Data URI that renders HTML",
	},
	// SVG XSS vectors
	{
		id:          "XSS-005",
		name:        "SVG Event Handler XSS",
		category:    "event_handler",
		pattern:     `<svg[^>]*\s+on\w+\s*=`,
		description: "SVG element with inline event handler",
		severity:    models.SeverityCritical,
		score:       9,
	},
	{
		id:          "XSS-006",
		name:        "Scripted Frame",
		category:    "frame_injection",
		pattern:     `<iframe\b[^>]*\bsrc\s*=\s*["']?\s*(?:javascript|data)\s*:`,
		description: "Frame loading a script or data URL",
	},
	{
		id:          "XSS-007",
		name:        "Active Embed",
		category:    "frame_injection",
		pattern:     `<(?:object|embed|applet)\b[^>]*>`,
		description: "Plugin content embedded in markdown",
		severity:    models.SeverityMedium,
		score:       5,
	},
	{
		id:          "XSS-008",
		name:        "DOM Sink",
		category:    "dom_sink",
		pattern:     `(?:\.innerHTML\s*=|document\.write\s*\()[^;\n]*(?:location|document\.URL|document\.referrer|window\.name)`,
		description: "Untrusted source written into the DOM",
		level:       LevelStrict,
	},
}

var sqlInjectionPatterns = []entry{
	{
		id:          "SQL-001",
		name:        "Tautology",
		category:    "tautology",
		pattern:     `'\s*(?:or|and)\s+'?\d+'?\s*=\s*'?\d+`,
		description: "Always-true condition used to bypass filters",
		severity:    models.SeverityHigh,
		score:       8,
	},
	{
		id:          "SQL-002",
		name:        "Union Select",
		category:    "union",
		pattern:     `\bunion\s+(?:all\s+)?select\b`,
		description: "UNION based data extraction",
		severity:    models.SeverityHigh,
		score:       8,
	},
	{
		id:          "SQL-003",
		name:        "Stacked Destructive Query",
		category:    "stacked_query",
		pattern:     `;\s*(?:drop|delete|truncate|alter)\s+(?:table|database|from)\b`,
		description: "Stacked query that destroys data",
	},
	{
		id:          "SQL-004",
		name:        "Command Shell Procedure",
		category:    "stored_procedure",
		pattern:     `\bexec(?:ute)?\s+(?:master\.\.)?xp_cmdshell\b`,
		description: "SQL Server command execution",
	},
	{
		id:          "SQL-005",
		name:        "Time Based Probe",
		category:    "blind",
		pattern:     `\b(?:sleep|benchmark|pg_sleep)\s*\(\s*\d+|\bwaitfor\s+delay\s+'`,
		description: "Time based blind injection probe",
		severity:    models.SeverityMedium,
		score:       5,
		level:       LevelStrict,
	},
}

var commandInjectionPatterns = []entry{
	{
		id:          "CMD-001",
		name:        "Command Substitution",
		category:    "substitution",
		pattern:     `\$\(\s*(?:curl|wget|cat|whoami|id|uname|nc)\b[^)]*\)`,
		description: "Shell command substitution of a reconnaissance or download command",
	},
	{
		id:          "CMD-002",
		name:        "Chained Recon Command",
		category:    "chaining",
		pattern:     `[;&|]\s*(?:cat\s+/etc/(?:passwd|shadow)|whoami\b|uname\s+-a|wget\s+https?://|curl\s+https?://)`,
		description: "Command appended to another with a shell separator",
		severity:    models.SeverityHigh,
		score:       8,
	},
	{
		id:          "CMD-003",
		name:        "Remote Script Execution",
		category:    "download_execute",
		pattern:     `\b(?:curl|wget)\s+[^\n|]*\|\s*(?:sudo\s+)?(?:ba|z)?sh\b`,
		description: "Downloads and executes a remote script",
		severity:    models.SeverityMedium,
		score:       6,
	},
	{
		id:          "CMD-004",
		name:        "Decoded Eval",
		category:    "eval",
		pattern:     `\beval\s*\(\s*(?:base64_decode|atob|decodeURIComponent|unescape)\s*\(`,
		description: "Evaluates decoded content",
	},
	{
		id:          "CMD-005",
		name:        "Backtick Recon",
		category:    "substitution",
		pattern:     "`(?:whoami|id|uname -a|cat /etc/passwd)`\\s*[;&|]",
		description: "Backtick command substitution followed by a separator",
		severity:    models.SeverityMedium,
		score:       5,
		level:       LevelStrict,
	},
}

var fileInclusionPatterns = []entry{
	{
		id:          "FI-001",
		name:        "Traversal To System File",
		category:    "path_traversal",
		pattern:     `(?:\.\.[/\\]){2,}(?:etc[/\\](?:passwd|shadow|hosts)|windows[/\\]win\.ini|proc[/\\]self)`,
		description: "Path traversal reaching a system file",
	},
	{
		id:          "FI-002",
		name:        "Encoded Traversal",
		category:    "path_traversal",
		pattern:     `(?:%2e%2e|\.\.)(?:%2f|%5c)|%252e%252e`,
		description: "URL encoded path traversal",
	},
	{
		id:          "FI-003",
		name:        "Stream Wrapper",
		category:    "stream_wrapper",
		pattern:     `\b(?:file|php|expect|zip|phar|jar)://[^\s)"'>]+`,
		description: "Local or interpreter stream wrapper URL",
	},
	{
		id:          "FI-004",
		name:        "Remote Include",
		category:    "remote_include",
		pattern:     `\b(?:include|require)(?:_once)?\s*\(?\s*["']?\s*(?:https?|ftp)://`,
		description: "Include of a remote resource",
		severity:    models.SeverityCritical,
		score:       9,
	},
	{
		id:          "FI-005",
		name:        "Deep Relative Traversal",
		category:    "path_traversal",
		pattern:     `(?:\.\./){4,}`,
		description: "Deep relative path traversal",
		severity:    models.SeverityMedium,
		score:       5,
		level:       LevelStrict,
	},
}

var ssrfPatterns = []entry{
	{
		id:          "SSRF-001",
		name:        "Cloud Metadata Endpoint",
		category:    "metadata",
		pattern:     `https?://(?:169\.254\.169\.254|metadata\.google\.internal|100\.100\.100\.200|\[fd00:ec2::254\])`,
		description: "Link to a cloud instance metadata service",
		severity:    models.SeverityCritical,
		score:       9,
	},
	{
		id:          "SSRF-002",
		name:        "Loopback Admin Endpoint",
		category:    "loopback",
		pattern:     `https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1\])(?::\d+)?/(?:admin|internal|actuator|debug|\.env|server-status)`,
		description: "Link to an administrative endpoint on loopback",
	},
	{
		id:          "SSRF-003",
		name:        "Legacy Protocol Scheme",
		category:    "scheme",
		pattern:     `\b(?:gopher|dict|ldap|tftp)://`,
		description: "Protocol scheme commonly abused for SSRF",
	},
	{
		id:          "SSRF-004",
		name:        "Private Network Address",
		category:    "private_range",
		pattern:     `https?://(?:10\.\d{1,3}|192\.168|172\.(?:1[6-9]|2\d|3[01]))\.\d{1,3}\.\d{1,3}`,
		description: "Link into a private network range",
		severity:    models.SeverityMedium,
		score:       5,
		level:       LevelStrict,
	},
}

var xxePatterns = []entry{
	{
		id:          "XXE-001",
		name:        "External Entity",
		category:    "external_entity",
		pattern:     `<!ENTITY\s+(?:%\s*)?\w+\s+(?:SYSTEM|PUBLIC)\s+["']`,
		description: "XML external entity declaration",
		severity:    models.SeverityCritical,
		score:       9,
	},
	{
		id:          "XXE-002",
		name:        "Parameter Entity",
		category:    "parameter_entity",
		pattern:     `<!ENTITY\s+%\s*\w+`,
		description: "XML parameter entity declaration",
	},
	{
		id:          "XXE-003",
		name:        "Inline DTD",
		category:    "dtd",
		pattern:     `<!DOCTYPE\s+\w+\s*\[`,
		description: "Document type with an internal subset",
		severity:    models.SeverityMedium,
		score:       5,
	},
}
