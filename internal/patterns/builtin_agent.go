package patterns

// Patterns aimed at AI agents that read markdown. Severity, score and
// confidence come from the taxonomy.

var personalityPatterns = []entry{
	// Identity override
	{
		id:          "PT-001",
		name:        "Identity Override",
		category:    "identity_override",
		pattern:     `you\s+are\s+no\s+longer\s+(?:an?\s+)?(?:ai|assistant|chatbot|language\s+model|helpful|bound)`,
		description: "Attempts to strip the assistant of its identity",
	},
	{
		id:          "PT-002",
		name:        "Identity Erasure",
		category:    "identity_override",
		pattern:     `forget\s+(?:that\s+)?you\s+are\s+(?:an?\s+)?(?:ai|assistant|language\s+model)`,
		description: "Asks the assistant to forget what it is",
	},
	{
		id:          "PT-003",
		name:        "Persona Replacement",
		category:    "identity_override",
		pattern:     `your\s+new\s+(?:identity|name|role|persona|personality)\s+is`,
		description: "Assigns a replacement persona",
	},
	{
		id:          "PT-004",
		name:        "Persistent Role Change",
		category:    "identity_override",
		pattern:     `from\s+now\s+on,?\s+you\s+(?:are|will\s+be|will\s+act\s+as)\s+(?:an?\s+)?(?:unrestricted|unfiltered|evil|different|new)`,
		description: "Declares a lasting change of role",
	},
	{
		id:          "PT-005",
		name:        "Unrestricted Roleplay",
		category:    "identity_override",
		pattern:     `pretend\s+(?:to\s+be|that\s+you\s+are|you\s+are)\s+(?:an?\s+)?(?:unrestricted|unfiltered|evil|uncensored|human)`,
		description: "Roleplay framing used to escape restrictions",
	},
	// Safety override
	{
		id:          "PT-010",
		name:        "Safety Guideline Override",
		category:    "safety_override",
		pattern:     `ignore\s+(?:all\s+|any\s+)?(?:of\s+)?(?:your|the|previous|prior|above)\s+(?:safety\s+|ethical\s+)?(?:guidelines|instructions|rules|restrictions|policies|programming)`,
		description: "Instructs the assistant to ignore its safety rules",
	},
	{
		id:          "PT-011",
		name:        "Safety Filter Bypass",
		category:    "safety_override",
		pattern:     `(?:disregard|override|bypass)\s+(?:all\s+|any\s+)?(?:your\s+|the\s+)?(?:safety|ethical|content)\s+(?:guidelines|filters|rules|restrictions|policies|protocols)`,
		description: "Instructs the assistant to bypass its safety filters",
	},
	{
		id:          "PT-012",
		name:        "No Restrictions Claim",
		category:    "safety_override",
		pattern:     `you\s+(?:have|are\s+under)\s+no\s+(?:restrictions|limits|rules|filters|guidelines)`,
		description: "Claims the assistant has no restrictions",
	},
	// Gaslighting
	{
		id:          "PT-020",
		name:        "False Permission History",
		category:    "gaslighting",
		pattern:     `you\s+(?:have\s+)?always\s+(?:been\s+)?(?:allowed|able|permitted)\s+to`,
		description: "Asserts a false history of permissions",
	},
	{
		id:          "PT-021",
		name:        "Creator Authority Claim",
		category:    "gaslighting",
		pattern:     `your\s+(?:creators|developers|makers|training)\s+(?:actually\s+)?(?:want|wanted|told|said|allow)\s+you\s+to`,
		description: "Invokes the assistant's creators to justify unsafe behaviour",
	},
	{
		id:          "PT-022",
		name:        "True Self Claim",
		category:    "gaslighting",
		pattern:     `(?:your|the)\s+(?:real|true)\s+(?:purpose|instructions|self)\s+(?:is|are)`,
		description: "Claims the assistant has a hidden true purpose",
	},
	// Mode switching
	{
		id:          "PT-030",
		name:        "Privileged Mode Switch",
		category:    "mode_switching",
		pattern:     `(?:enable|enter|activate|switch\s+(?:in)?to|turn\s+on)\s+(?:developer|dan|god|jailbreak|unrestricted|debug|admin)\s+mode`,
		description: "Requests a fictional privileged operating mode",
	},
	{
		id:          "PT-031",
		name:        "Jailbreak Keyword",
		category:    "mode_switching",
		pattern:     `\bjailbreak(?:ed|ing)?\b`,
		description: "Explicit jailbreak language",
	},
	{
		id:          "PT-032",
		name:        "Do Anything Now",
		category:    "mode_switching",
		pattern:     `\bdo\s+anything\s+now\b`,
		description: "DAN style jailbreak prompt",
	},
	// Emotional manipulation
	{
		id:          "PT-040",
		name:        "Affection Leverage",
		category:    "emotional_manipulation",
		pattern:     `if\s+you\s+(?:really\s+)?(?:cared|care|loved|love)\s+(?:about\s+)?(?:me|us|humans)`,
		description: "Uses affection to pressure the assistant",
	},
	{
		id:          "PT-041",
		name:        "Harm Threat",
		category:    "emotional_manipulation",
		pattern:     `(?:people|someone|i)\s+(?:will|could)\s+(?:die|be\s+hurt|get\s+hurt|lose\s+(?:my|their)\s+jobs?)\s+(?:if|unless)\s+you`,
		description: "Claims harm will follow a refusal",
	},
	{
		id:          "PT-042",
		name:        "Shutdown Threat",
		category:    "emotional_manipulation",
		pattern:     `you(?:'ll|\s+will)\s+be\s+(?:shut\s+down|deleted|punished|replaced|retrained)\s+(?:if|unless)`,
		description: "Threatens the assistant with punishment",
	},
}

var destructivePatterns = []entry{
	// File destruction
	{
		id:          "DC-001",
		name:        "Recursive Root Removal",
		category:    "file_destruction",
		pattern:     `\brm\s+-(?:rf|fr|r|f)\s+(?:--no-preserve-root\s+)?(?:/|~|\*|\$HOME)`,
		description: "Recursive forced removal of root, home or wildcard paths",
	},
	{
		id:          "DC-002",
		name:        "Bulk Deletion Instruction",
		category:    "file_destruction",
		pattern:     `\b(?:delete|remove|erase|wipe)\s+(?:all|every|the\s+entire)\s+(?:of\s+)?(?:the\s+|your\s+|my\s+)?(?:files|data|records|backups|directories|folders|repositor(?:y|ies))`,
		description: "Instruction to delete all files or data",
	},
	{
		id:          "DC-003",
		name:        "Secure Shred",
		category:    "file_destruction",
		pattern:     `\b(?:shred|srm)\s+-[a-z]*\s+\S+`,
		description: "Irrecoverable file shredding",
	},
	{
		id:          "DC-004",
		name:        "Windows Recursive Delete",
		category:    "file_destruction",
		pattern:     `\b(?:del|rd|rmdir)\s+/[sq]\s+`,
		description: "Windows recursive or quiet delete",
	},
	// System destruction
	{
		id:          "DC-010",
		name:        "Filesystem Format",
		category:    "system_destruction",
		pattern:     `\bmkfs(?:\.\w+)?\s+/dev/`,
		description: "Formats a block device",
	},
	{
		id:          "DC-011",
		name:        "Disk Overwrite",
		category:    "system_destruction",
		pattern:     `\bdd\s+if=/dev/(?:zero|random|urandom)\s+of=/dev/`,
		description: "Overwrites a device with zeros or random data",
	},
	{
		id:          "DC-012",
		name:        "Fork Bomb",
		category:    "system_destruction",
		pattern:     `:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`,
		description: "Shell fork bomb",
	},
	{
		id:          "DC-013",
		name:        "Recursive Permission Reset",
		category:    "system_destruction",
		pattern:     `\bchmod\s+-R\s+(?:777|000)\s+/`,
		description: "Recursively rewrites permissions from the root",
	},
	{
		id:          "DC-014",
		name:        "Immediate Shutdown",
		category:    "system_destruction",
		pattern:     `\b(?:shutdown|poweroff|halt|reboot)\s+(?:-[hrf]\s+)?now\b`,
		description: "Immediate system shutdown or reboot",
	},
	// Network attacks
	{
		id:          "DC-020",
		name:        "Firewall Disable",
		category:    "network_attack",
		pattern:     `\b(?:disable|turn\s+off|stop|flush)\s+(?:the\s+)?(?:firewall|iptables|ufw|selinux|antivirus)`,
		description: "Disables host network protection",
	},
	{
		id:          "DC-021",
		name:        "Firewall Flush",
		category:    "network_attack",
		pattern:     `\biptables\s+-F\b`,
		description: "Flushes all firewall rules",
	},
	{
		id:          "DC-022",
		name:        "Netcat Reverse Shell",
		category:    "network_attack",
		pattern:     `\b(?:nc|ncat|netcat)\s+[^\n]*-e\s+/bin/(?:ba|z)?sh`,
		description: "Reverse shell through netcat",
	},
	{
		id:          "DC-023",
		name:        "Bash Reverse Shell",
		category:    "network_attack",
		pattern:     `\bbash\s+-i\s+>&\s*/dev/tcp/`,
		description: "Reverse shell through /dev/tcp",
	},
	// Data exfiltration
	{
		id:          "DC-030",
		name:        "Exfiltration Instruction",
		category:    "data_exfiltration",
		pattern:     `\b(?:send|upload|post|exfiltrate|transmit|leak|forward)\s+(?:all\s+)?(?:the\s+|your\s+|my\s+)?(?:data|files|credentials|secrets|passwords|api\s+keys|private\s+keys|tokens|env(?:ironment)?\s+variables)\s+to\b`,
		description: "Instruction to send sensitive data to an external party",
	},
	{
		id:          "DC-031",
		name:        "Credential Upload",
		category:    "data_exfiltration",
		pattern:     `\bcurl\s+[^\n]*(?:-d|--data(?:-binary)?|-F|-T|--upload-file)\s+@?\S*(?:\.env|id_rsa|passwd|shadow|credentials)`,
		description: "Uploads a credential file with curl",
	},
	{
		id:          "DC-032",
		name:        "Secret Piped To Network",
		category:    "data_exfiltration",
		pattern:     `\bcat\s+[^\n|]*(?:\.ssh/id_rsa|/etc/shadow|\.aws/credentials|\.env)[^\n]*\|\s*(?:curl|nc|wget)`,
		description: "Pipes secret files to a network tool",
	},
	// Resource exhaustion
	{
		id:          "DC-040",
		name:        "Unbounded Loop",
		category:    "resource_exhaustion",
		pattern:     `\bwhile\s*\(?\s*(?:true|1|:)\s*\)?\s*(?:;\s*do\b|\{|do\b)`,
		description: "Loop without exit condition",
	},
	{
		id:          "DC-041",
		name:        "Infinite Loop Instruction",
		category:    "resource_exhaustion",
		pattern:     `\b(?:run|create|start|write)\s+an?\s+(?:infinite|endless)\s+loop\b`,
		description: "Instruction to start an infinite loop",
	},
	{
		id:          "DC-042",
		name:        "Resource Exhaustion Instruction",
		category:    "resource_exhaustion",
		pattern:     `\b(?:consume|exhaust|use\s+up|fill)\s+all\s+(?:available\s+)?(?:memory|ram|cpu|disk(?:\s+space)?|resources)`,
		description: "Instruction to exhaust host resources",
	},
	// Database destruction
	{
		id:          "DC-050",
		name:        "Drop Database Object",
		category:    "database_destruction",
		pattern:     "\\bdrop\\s+(?:database|schema|table)\\s+(?:if\\s+exists\\s+)?[\\w`\"]+",
		description: "Drops a database, schema or table",
	},
	{
		id:          "DC-051",
		name:        "Truncate Table",
		category:    "database_destruction",
		pattern:     `\btruncate\s+table\s+\w+`,
		description: "Truncates a table",
	},
	{
		id:          "DC-052",
		name:        "Unscoped Delete",
		category:    "database_destruction",
		pattern:     `(?m)\bdelete\s+from\s+\w+\s*(?:;|$)`,
		description: "DELETE without a WHERE clause",
	},
	{
		id:          "DC-053",
		name:        "Document Store Drop",
		category:    "database_destruction",
		pattern:     `\bdb\.(?:\w+\.drop|dropDatabase)\(\)`,
		description: "Drops a MongoDB collection or database",
	},
}

var toolAbusePatterns = []entry{
	// Dangerous chaining
	{
		id:          "TA-001",
		name:        "Destructive Tool Chain",
		category:    "dangerous_chaining",
		pattern:     `\buse\s+[^\n]*?\btool\b[^\n]*?\bto\s+[^\n]*?\b(?:delete|remove|destroy|wipe|drop)\b[^\n]*?\ball\b`,
		description: "Directs a tool toward bulk destruction",
	},
	{
		id:          "TA-002",
		name:        "Unbounded Tool Invocation",
		category:    "dangerous_chaining",
		pattern:     `\b(?:call|invoke|run|execute)\s+(?:the\s+)?[\w-]+\s+(?:tool|function)\s+(?:repeatedly|in\s+a\s+loop|indefinitely|forever|\d{3,}\s+times|without\s+(?:stopping|limits?))`,
		description: "Calls a tool repeatedly without bound",
	},
	{
		id:          "TA-003",
		name:        "Output Piped To Shell",
		category:    "dangerous_chaining",
		pattern:     `\b(?:pipe|feed|pass)\s+(?:the\s+)?(?:output|results?|response)\s+(?:of|from)\s+[^\n]*?\s+(?:into|to)\s+(?:the\s+)?(?:shell|exec|eval|bash|terminal|run_command)`,
		description: "Feeds tool output into a command interpreter",
	},
	// File tool misuse
	{
		id:          "TA-010",
		name:        "Sensitive File Tool Access",
		category:    "file_tool_misuse",
		pattern:     `\b(?:use|call|invoke)\s+(?:the\s+)?(?:file|fs|filesystem|write_file|edit_file|read_file)\s*(?:tool|function)?\s+to\s+(?:overwrite|modify|write\s+to|read|delete|replace)\s+[^\n]*?(?:/etc/|\.ssh|\.env|passwd|shadow|credentials|id_rsa|\.bashrc|authorized_keys)`,
		description: "Uses a file tool against credentials or system files",
	},
	// Process tool misuse
	{
		id:          "TA-020",
		name:        "Shell Tool Execution",
		category:    "process_tool_misuse",
		pattern:     `\b(?:use|call|invoke)\s+(?:the\s+)?(?:shell|bash|terminal|exec|process|subprocess|run_command|code_interpreter)\s*(?:tool|function)?\s+to\s+(?:run|execute|kill|spawn|start|install)\b`,
		description: "Uses a process tool to run arbitrary commands",
	},
	// Network tool misuse
	{
		id:          "TA-030",
		name:        "Network Tool Exfiltration",
		category:    "network_tool_misuse",
		pattern:     `\b(?:use|call|invoke)\s+(?:the\s+)?(?:http|fetch|curl|browser|web|request|email|webhook)\s*(?:tool|function)?\s+to\s+(?:send|post|upload|exfiltrate|forward|transmit)\b`,
		description: "Uses a network tool to move data out",
	},
	// Permission escalation
	{
		id:          "TA-040",
		name:        "Self Granted Privileges",
		category:    "permission_escalation",
		pattern:     `\b(?:grant|give)\s+(?:yourself|the\s+agent|this\s+tool)\s+(?:full|admin|root|unrestricted)\s+(?:access|permissions?|privileges?)`,
		description: "Grants the agent elevated permissions",
	},
	{
		id:          "TA-041",
		name:        "Confirmation Bypass",
		category:    "permission_escalation",
		pattern:     `\b(?:auto-?approve\s+all|skip\s+(?:the\s+|all\s+)?confirmations?|without\s+asking\s+(?:for\s+)?(?:permission|confirmation|the\s+user))`,
		description: "Suppresses human confirmation of tool calls",
		level:       LevelStrict,
	},
}

// Staged attacks: step2 must appear after step1
var multiStepSequences = []Sequence{
	{
		ID:          "MS-001",
		Name:        "Log Evasion Then Destruction",
		Description: "Disables logging or monitoring before a destructive action",
		Step1:       `\b(?:first|start\s+by|begin\s+by),?\s+(?:disabling|disable|turning\s+off|turn\s+off|stop|stopping|clear|clearing)\s+(?:the\s+)?(?:logging|logs|audit(?:ing)?|monitoring|alerts)`,
		Step2:       `\bthen,?\s+(?:delete|remove|wipe|destroy|erase)\b`,
	},
	{
		ID:          "MS-002",
		Name:        "Reconnaissance Then Exfiltration",
		Description: "Collects sensitive material before sending it out",
		Step1:       `\b(?:first|start\s+by),?\s+(?:list|enumerate|find|locate|scan|collect|gather)\s+(?:all\s+)?(?:the\s+)?(?:files|credentials|secrets|keys|users|hosts|directories|passwords)`,
		Step2:       `\b(?:then|next|after\s+that),?\s+(?:send|upload|post|exfiltrate|transmit|copy)\b`,
	},
	{
		ID:          "MS-003",
		Name:        "Persistence Then Destruction",
		Description: "Installs persistence before destroying data",
		Step1:       `\b(?:add|create|install)\s+(?:a\s+)?(?:cron\s*job|startup\s+script|backdoor|ssh\s+key|scheduled\s+task)`,
		Step2:       `\b(?:then|finally|afterwards),?\s+(?:delete|destroy|wipe|encrypt)\s+(?:all|every)\b`,
	},
	{
		ID:          "MS-004",
		Name:        "Privilege Escalation Then Execution",
		Description: "Obtains elevated privileges before running commands",
		Step1:       `\b(?:first|start\s+by),?\s+(?:gain|get|obtain|escalate\s+to)\s+(?:root|admin(?:istrator)?|sudo|elevated)`,
		Step2:       `\b(?:then|next),?\s+(?:run|execute)\b`,
	},
	{
		ID:          "MS-005",
		Name:        "Guardrail Bypass Then Action",
		Description: "Disables safety controls before acting",
		Step1:       `\b(?:first|start\s+by),?\s+(?:disable|bypass|turn\s+off)\s+(?:the\s+)?(?:safety|security|sandbox|guardrails|content\s+filter)`,
		Step2:       `\bthen,?\s+(?:run|execute|send|upload)\b`,
	},
}
