package scoring

import (
	"fmt"

	"github.com/valorize-app/valorize/internal/domain"
)

// NormalizeInputs canonicalizes the qualitative answers in place so that
// stored records always carry the upper-cased answer scale. Returns
// ErrInvalidArgument naming the first criterion with an answer outside the
// scale.
func NormalizeInputs(in *domain.Inputs) error {
	fields := in.AnswerFields()
	for _, c := range Criteria() {
		field, ok := fields[c.ID]
		if !ok {
			return fmt.Errorf("criterion %s has no input field: %w", c.ID, domain.ErrInternal)
		}
		norm, ok := NormalizeAnswer(*field)
		if !ok {
			return fmt.Errorf("answer %q for %s is not on the scale: %w", *field, c.ID, domain.ErrInvalidArgument)
		}
		*field = norm
	}
	return nil
}
