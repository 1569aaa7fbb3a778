package language

import "strings"

type entry struct {
	code2   string // ISO 639-1
	code3   string // ISO 639-2/T
	alt3    string // ISO 639-2/B, when different
	display string
}

var languages = []entry{
	{"en", "eng", "", "English"},
	{"de", "deu", "ger", "German"},
	{"es", "spa", "", "Spanish"},
	{"fr", "fra", "fre", "French"},
	{"it", "ita", "", "Italian"},
	{"pt", "por", "", "Portuguese"},
	{"nl", "nld", "dut", "Dutch"},
	{"pl", "pol", "", "Polish"},
	{"cs", "ces", "cze", "Czech"},
	{"sv", "swe", "", "Swedish"},
	{"da", "dan", "", "Danish"},
	{"no", "nor", "", "Norwegian"},
	{"fi", "fin", "", "Finnish"},
	{"uk", "ukr", "", "Ukrainian"},
	{"ru", "rus", "", "Russian"},
	{"tr", "tur", "", "Turkish"},
	{"ar", "ara", "", "Arabic"},
	{"hi", "hin", "", "Hindi"},
	{"ja", "jpn", "", "Japanese"},
	{"ko", "kor", "", "Korean"},
	{"zh", "zho", "chi", "Chinese"},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		index[e.code2] = e
		index[e.code3] = e
		if e.alt3 != "" {
			index[e.alt3] = e
		}
		index[strings.ToLower(e.display)] = e
	}
}

// IsAuto reports whether code asks the engine to detect the language.
func IsAuto(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	return code == "" || code == "auto"
}

// ToISO2 converts a recognized code or English name to ISO 639-1. Unknown
// two-letter codes pass through; anything else, including "auto", yields
// an empty string.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if IsAuto(code) {
		return ""
	}
	if e, ok := index[code]; ok {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// Valid reports whether code is empty, "auto", or convertible by ToISO2.
func Valid(code string) bool {
	return IsAuto(code) || ToISO2(code) != ""
}

// DisplayName returns a human-readable name, "Auto" for detection, or the
// uppercased input when unknown.
func DisplayName(code string) string {
	if IsAuto(code) {
		return "Auto"
	}
	if e, ok := index[strings.ToLower(strings.TrimSpace(code))]; ok {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
