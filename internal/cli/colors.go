package cli

import "fmt"

// ANSI escape sequences. They become empty strings when colors are disabled.
var (
	Reset = "\033[0m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"

	Bold = "\033[1m"
	Dim  = "\033[2m"

	BgRed = "\033[41m"
)

// Predefined color combinations for consistency
var (
	HeaderStyle string
	TitleStyle  string

	SuccessStyle string
	ErrorStyle   string
	WarningStyle string
	InfoStyle    string

	LabelStyle     string
	ValueStyle     string
	DimStyle       string
	HighlightStyle string
	CountStyle     string
	SecondaryStyle string
	MetaStyle      string
)

func init() {
	applyStyles()
}

func applyStyles() {
	HeaderStyle = Cyan + Bold
	TitleStyle = Magenta + Bold

	SuccessStyle = Green + Bold
	ErrorStyle = Red + Bold
	WarningStyle = Yellow + Bold
	InfoStyle = Blue + Bold

	LabelStyle = Cyan
	ValueStyle = White + Bold
	DimStyle = Dim
	HighlightStyle = BgRed + White + Bold
	CountStyle = Yellow + Bold
	SecondaryStyle = Blue
	MetaStyle = Gray
}

// disableColors strips every escape sequence from the output
func disableColors() {
	for _, c := range []*string{&Reset, &Red, &Green, &Yellow, &Blue, &Magenta, &Cyan, &White, &Gray, &Bold, &Dim, &BgRed} {
		*c = ""
	}
	applyStyles()
}

func FormatValue(text string) string {
	return ValueStyle + text + Reset
}

func FormatSuccess(text string) string {
	return SuccessStyle + text + Reset
}

func FormatError(text string) string {
	return ErrorStyle + text + Reset
}

func FormatCount(count int) string {
	return CountStyle + fmt.Sprintf("%d", count) + Reset
}

func FormatHighlight(text string) string {
	return HighlightStyle + text + Reset
}

func FormatDim(text string) string {
	return DimStyle + text + Reset
}

func FormatSecondary(text string) string {
	return SecondaryStyle + text + Reset
}

func FormatMeta(text string) string {
	return MetaStyle + text + Reset
}

// Format a label-value pair
func FormatLabelValue(label, value string) string {
	return LabelStyle + label + Reset + " " + ValueStyle + value + Reset
}

// Format a count with label
func FormatCountLabel(label string, count int) string {
	return LabelStyle + label + Reset + " " + CountStyle + fmt.Sprintf("%d", count) + Reset
}
