package orchestrator

import (
	"fmt"
	"regexp"

	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

// handlePattern is the restrictive shape accepted for usernames after
// normalization.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// validateBatch checks the whole batch before any work starts and
// returns the normalized requests. Any failure rejects the entire
// batch; no partial work is performed.
func validateBatch(requests []models.RootRequest, maxRoots int) ([]models.RootRequest, error) {
	var reasons []string

	if len(requests) == 0 {
		reasons = append(reasons, "batch is empty")
	}
	if maxRoots > 0 && len(requests) > maxRoots {
		reasons = append(reasons, fmt.Sprintf("batch has %d roots, the cap is %d", len(requests), maxRoots))
	}

	normalized := make([]models.RootRequest, len(requests))
	for i, req := range requests {
		req.Username = NormalizeUsername(req.Username)

		if req.Platform == "" {
			reasons = append(reasons, fmt.Sprintf("request %d has no platform", i))
		}
		if !handlePattern.MatchString(req.Username) {
			reasons = append(reasons, fmt.Sprintf("request %d has an invalid username %q", i, req.Username))
		}
		normalized[i] = req
	}

	if len(reasons) > 0 {
		return nil, &apperrors.BatchValidationError{Reasons: reasons}
	}
	return normalized, nil
}
