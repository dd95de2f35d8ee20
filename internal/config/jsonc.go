package config

import "errors"

type scanMode int

const (
	scanCode scanMode = iota
	scanString
	scanLineComment
	scanBlockComment
)

// normalizeJSONC blanks comments and trailing commas with spaces. Every other
// byte keeps its offset, so decoder positions map straight back to the file.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	mode := scanCode
	escaped := false
	pendingComma := -1

	blank := func(i int) {
		if !isJSONWhitespace(out[i]) {
			out[i] = ' '
		}
	}

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch mode {
		case scanString:
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				mode = scanCode
			}

		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				mode = scanCode
				continue
			}
			blank(i)

		case scanBlockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				mode = scanCode
				continue
			}
			blank(i)

		default:
			switch {
			case ch == '/' && i+1 < len(out) && out[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				mode = scanLineComment
			case ch == '/' && i+1 < len(out) && out[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				i++
				mode = scanBlockComment
			case isJSONWhitespace(ch):
			case ch == ',':
				pendingComma = i
			case ch == '}' || ch == ']':
				if pendingComma >= 0 {
					out[pendingComma] = ' '
				}
				pendingComma = -1
			case ch == '"':
				pendingComma = -1
				mode = scanString
			default:
				pendingComma = -1
			}
		}
	}

	if mode == scanBlockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(out), nil
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

// offsetToLineCol converts a decoder byte offset (bytes consumed) to a
// 1-based line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	end := min(int(max(offset, 1)), len(content))

	line, col := 1, 1
	for i := 0; i < end-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
