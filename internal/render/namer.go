package render

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/labslipflow/internal/normalize"
	"github.com/Lllllllleong/labslipflow/internal/pipeline"
)

// Namer hands out filenames for one run and one format. Names come from
// normalize.BuildFilename; a repeat within the run gets a numeric suffix
// instead of overwriting the earlier file.
type Namer struct {
	used   map[string]int
	logger *slog.Logger
}

func NewNamer(logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{used: make(map[string]int), logger: logger}
}

// Name returns a filename for rec that no earlier call on n returned.
func (n *Namer) Name(rec pipeline.Record, format Format) string {
	fullName := rec.FullName
	if normalize.Slugify(fullName) == "" {
		n.logger.Warn("Name has no filename-safe characters, using section number.",
			"position", rec.Position, "fullName", rec.FullName)
		fullName = fmt.Sprintf("section %d", rec.Position)
	}

	name := normalize.BuildFilename(rec.Code, fullName, string(format))
	ext := "." + string(format)
	stem := strings.TrimSuffix(name, ext)
	if n.used[stem] == 0 {
		n.used[stem] = 1
		return name
	}
	for k := n.used[stem] + 1; ; k++ {
		candidate := fmt.Sprintf("%s_%d", stem, k)
		if n.used[candidate] == 0 {
			n.used[stem] = k
			n.used[candidate] = 1
			n.logger.Warn("Filename already used in this run, added suffix.",
				"position", rec.Position, "filename", candidate+ext)
			return candidate + ext
		}
	}
}
