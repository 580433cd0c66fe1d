package invoker

import (
	"strconv"
	"strings"
)

// Params are the values substituted into a tool argument template.
type Params struct {
	Script        string
	Weights       string
	Source        string
	Project       string
	ImageSize     int
	LineThickness int
	Confidence    float64
}

// ExpandArgs splits template on whitespace and replaces the placeholders
// {script}, {weights}, {source}, {project}, {imgsz}, {line_thickness} and
// {conf} inside each token. Substituted values are never split, so paths with
// spaces stay a single argument. Tokens that expand to nothing are dropped.
func ExpandArgs(template string, p Params) []string {
	r := strings.NewReplacer(
		"{script}", p.Script,
		"{weights}", p.Weights,
		"{source}", p.Source,
		"{project}", p.Project,
		"{imgsz}", strconv.Itoa(p.ImageSize),
		"{line_thickness}", strconv.Itoa(p.LineThickness),
		"{conf}", strconv.FormatFloat(p.Confidence, 'f', -1, 64),
	)

	fields := strings.Fields(template)
	args := make([]string, 0, len(fields))
	for _, field := range fields {
		if arg := r.Replace(field); arg != "" {
			args = append(args, arg)
		}
	}
	return args
}
