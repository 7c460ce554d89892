package catalog

import (
	"strings"
)

// Statements that may be hard-wrapped across lines in the wild.
var reflowStarters = map[string]bool{
	"VAL_":         true,
	"CM_":          true,
	"BA_":          true,
	"BA_DEF_":      true,
	"BA_DEF_DEF_":  true,
	"VAL_TABLE_":   true,
	"SIG_VALTYPE_": true,
}

// Reflow rejoins multi-line statements. A statement that starts with one of
// the reflow keywords is extended with following lines until it ends with
// ";" and contains an even number of double quotes. Line endings are
// normalized and a leading byte order mark is removed.
func Reflow(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	if text == "" {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !reflowStarters[firstToken(line)] {
			out = append(out, line)
			continue
		}

		buf := strings.TrimRight(line, " \t")
		for i+1 < len(lines) && !statementComplete(buf) {
			i++
			cont := strings.TrimSpace(lines[i])
			if cont == "" {
				buf += " "
				continue
			}
			buf += " " + cont
		}
		out = append(out, buf)
	}
	return strings.Join(out, "\n")
}

func statementComplete(buf string) bool {
	return strings.HasSuffix(strings.TrimSpace(buf), ";") && strings.Count(buf, `"`)%2 == 0
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// LooksLikeHTML reports whether text is an HTML document rather than a DBC,
// as served by a web page in place of a raw file.
func LooksLikeHTML(text string) bool {
	head := strings.TrimLeft(strings.TrimPrefix(text, "\ufeff"), " \t\r\n")
	if len(head) > 200 {
		head = head[:200]
	}
	head = strings.ToLower(head)
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<head")
}
