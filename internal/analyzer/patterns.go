// ABOUTME: Indicator pattern table for the fast heuristic tier
// ABOUTME: Severity-weighted substrings matched case-insensitively against content

package analyzer

// Severity weights for indicator patterns.
const (
	SeverityHigh   = 0.9
	SeverityMedium = 0.5
	SeverityLow    = 0.2
)

// Pattern is one indicator: a lowercase substring with a severity weight.
// Matching folds the input inline, so patterns must be stored lowercase.
type Pattern struct {
	// Name identifies the indicator in explanations.
	Name string

	// Text is the lowercase byte sequence to search for.
	Text string

	// Severity weights this pattern's contribution to the pattern score.
	Severity float64
}

// DefaultPatterns is the built-in indicator table. It is intentionally
// small; real deployments load a curated table, this one covers the common
// dropper and loader tells plus the EICAR test string.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "eicar-test-signature", Text: `x5o!p%@ap[4\pzx54(p^)7cc)7}$eicar`, Severity: SeverityHigh},
		{Name: "powershell-encoded-command", Text: "powershell -enc", Severity: SeverityHigh},
		{Name: "powershell-hidden-window", Text: "-windowstyle hidden", Severity: SeverityHigh},
		{Name: "powershell-bypass", Text: "-executionpolicy bypass", Severity: SeverityHigh},
		{Name: "wscript-shell", Text: `createobject("wscript.shell")`, Severity: SeverityHigh},
		{Name: "remote-thread-injection", Text: "createremotethread", Severity: SeverityHigh},
		{Name: "virtual-alloc-ex", Text: "virtualallocex", Severity: SeverityHigh},
		{Name: "url-download-to-file", Text: "urldownloadtofile", Severity: SeverityHigh},
		{Name: "cmd-spawn", Text: "cmd.exe /c", Severity: SeverityMedium},
		{Name: "mshta-exec", Text: "mshta.exe", Severity: SeverityMedium},
		{Name: "rundll32-exec", Text: "rundll32", Severity: SeverityMedium},
		{Name: "regsvr32-exec", Text: "regsvr32 /s", Severity: SeverityMedium},
		{Name: "script-unescape", Text: "document.write(unescape", Severity: SeverityMedium},
		{Name: "js-eval", Text: "eval(", Severity: SeverityLow},
		{Name: "js-fromcharcode", Text: "string.fromcharcode", Severity: SeverityMedium},
		{Name: "curl-pipe-shell", Text: "curl -s", Severity: SeverityLow},
		{Name: "base64-decode-exec", Text: "base64 -d", Severity: SeverityMedium},
		{Name: "chmod-exec", Text: "chmod +x", Severity: SeverityLow},
		{Name: "schtasks-create", Text: "schtasks /create", Severity: SeverityMedium},
		{Name: "reg-run-key", Text: `\currentversion\run`, Severity: SeverityMedium},
		{Name: "vssadmin-delete", Text: "vssadmin delete shadows", Severity: SeverityHigh},
		{Name: "bcdedit-recovery-off", Text: "bcdedit /set {default} recoveryenabled no", Severity: SeverityHigh},
	}
}

// patternIndex buckets patterns by first byte so the scan only attempts
// patterns that can start at the current position.
type patternIndex struct {
	patterns []Pattern
	byFirst  [256][]int
	maxLen   int
}

func newPatternIndex(patterns []Pattern) *patternIndex {
	idx := &patternIndex{patterns: patterns}
	for i, p := range patterns {
		if len(p.Text) == 0 {
			continue
		}
		first := p.Text[0]
		idx.byFirst[first] = append(idx.byFirst[first], i)
		if len(p.Text) > idx.maxLen {
			idx.maxLen = len(p.Text)
		}
	}
	return idx
}

// foldByte lowercases ASCII letters without branching on locale. Matching
// is byte-wise; multi-byte encodings are compared raw.
func foldByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
