package port

import "github.com/bnema/transq/internal/domain"

// Transformer builds the external command converting a job's input into
// outputPath.
type Transformer interface {
	Command(job domain.Job, outputPath string) (domain.CommandSpec, error)
}
