package notam

import "strings"

// Qualifier is the structured view of a Q-line qualifier code:
// FIR/QCODE/TRAFFIC/PURPOSE/SCOPE/LOWER/UPPER/COORDS. Fields the upstream
// omits stay empty; parsing is best-effort and never blocks ingestion.
type Qualifier struct {
	FIR     string
	Code    string
	Traffic string
	Purpose string
	Scope   string
	Lower   string
	Upper   string
	Coords  string
}

// ParseQualifier splits a slash-delimited qualifier code into its fields.
// A lower limit of "000" is rendered "SFC" (surface), matching how the
// vertical limits are published.
func ParseQualifier(code string) Qualifier {
	var q Qualifier

	parts := strings.Split(strings.TrimSpace(code), "/")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch i {
		case 0:
			q.FIR = p
		case 1:
			q.Code = p
		case 2:
			q.Traffic = p
		case 3:
			q.Purpose = p
		case 4:
			q.Scope = p
		case 5:
			if p == "000" {
				p = "SFC"
			}
			q.Lower = p
		case 6:
			q.Upper = p
		case 7:
			q.Coords = p
		}
	}

	return q
}

// String renders the qualifier back into slash-delimited form, with the
// normalized vertical limits. Trailing empty fields are dropped.
func (q Qualifier) String() string {
	parts := []string{q.FIR, q.Code, q.Traffic, q.Purpose, q.Scope, q.Lower, q.Upper, q.Coords}
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "/")
}

// QualifierFromDetail locates the Q) line inside a full notice text and
// parses it. The second return value reports whether a Q) line was found.
func QualifierFromDetail(detail string) (Qualifier, bool) {
	for _, line := range strings.Split(detail, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Q)") {
			continue
		}
		return ParseQualifier(strings.TrimSpace(strings.TrimPrefix(line, "Q)"))), true
	}
	return Qualifier{}, false
}
