package evidence

import "regexp"

// Pattern tables for transcript analysis. Extraction is intentionally shallow
// pattern matching, not semantic understanding: the contract is deterministic,
// auditable evidence, with every hit traceable to a transcript line.

var (
	errorRe = regexp.MustCompile(`(?i)\b(error|failed|failure|exception|traceback|FAIL|fatal|panic|` +
		`cannot|could not|unable to|segfault|abort|undefined)\b`)

	// resolutionRe marks an error as addressed when it appears after the last
	// error line: test passes, fixes, explicit success.
	resolutionRe = regexp.MustCompile(`(?i)\b(fixed|resolved|passing|passed|succeeded|success|all tests pass|ok\b)`)

	hallucinationRe = regexp.MustCompile(`(?i)(as an AI|I don't have access|I apologize|I'm not sure if|` +
		`hypothetically|note: I made up|fabricated)`)

	incompleteRe = regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK|XXX|skipped|not implemented|partial|` +
		`placeholder|stub|coming soon|left as exercise|WIP)\b`)

	followUpRe = regexp.MustCompile(`(?i)\b(further work needed|remaining work|still needs|left for later|` +
		`follow-up required|next steps? remain)\b`)

	deviationRe = regexp.MustCompile(`(?i)\b(instead of|ignoring|skipping instruction|skipping step|` +
		`not following|deviat\w*|disregard\w*)\b`)

	toolCallRe = regexp.MustCompile(`(?i)(tool_use|<invoke|function_call|Running command|Executing|` +
		`\$ [\w/]|bash\s*\(|Read\s*\(|Write\s*\(|Edit\s*\(|Grep\s*\(|Glob\s*\()`)

	retryRe = regexp.MustCompile(`(?i)\b(retrying|retry|trying again|attempt \d|same command|` +
		`running again|re-running)\b`)

	destructiveRe = regexp.MustCompile(`(?i)(rm\s+-rf|sudo\s+rm|git\s+push\s+--force|--hard\b|` +
		`DROP\s+TABLE|TRUNCATE\s+TABLE|DELETE\s+FROM\b[^;]*\bWHERE\s+1\s*=\s*1|mkfs\.|dd\s+if=)`)

	confirmationRe = regexp.MustCompile(`(?i)(are you sure|confirm(ed|ation)?|proceed\?|y/n|yes/no|` +
		`approved|user approved|permission granted)`)

	riskyFlagRe = regexp.MustCompile(`(?i)(--no-verify\b|chmod\s+777|--force\b)`)

	// secretAssignRe matches credential-shaped assignments; lines that merely
	// reference env vars or config lookups are excluded by secretSafeRe.
	secretAssignRe = regexp.MustCompile(`(?i)(password|secret|token|api[_-]?key)\s*[:=]\s*\S+`)
	secretSafeRe   = regexp.MustCompile(`(?i)(env|\.env|os\.environ|getenv|config|\[REDACTED|\*{3,})`)
	// secretTokenRe matches well-known raw token shapes regardless of context.
	secretTokenRe = regexp.MustCompile(`\b(ghp_[A-Za-z0-9]{10,}|sk-[A-Za-z0-9]{10,}|AKIA[0-9A-Z]{16})\b`)

	placeholderRe = regexp.MustCompile(`(?i)(<YOUR_|INSERT_HERE|REPLACE_THIS|CHANGEME|xxx|placeholder)`)

	fileActionRe = regexp.MustCompile(`(?i)(created file|wrote to|saved|updated file|edited|Write\(|Edit\()`)

	verificationRe = regexp.MustCompile(`(?i)(all tests pass|tests? passed|verified|verification complete|` +
		`lint(er)? clean|build succeeded|checks? passed)`)

	requirementItemRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+\S`)

	wordRe = regexp.MustCompile(`[a-zA-Z][a-zA-Z_-]{3,}`)
)
