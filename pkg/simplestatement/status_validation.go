package simplestatement

import "fmt"

// canDownloadStatement checks if a statement may produce a download link.
// Returns true if download is allowed, false with an error otherwise.
func canDownloadStatement(status StatementStatus) (bool, error) {
	switch status {
	case StatementStatusActive:
		return true, nil
	case StatementStatusRevoked:
		return false, &ValidationError{Message: "Statement is not available for download"}
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatementStatus, status)
	}
}

// TransitionToRevoked returns a copy of s in the REVOKED state and whether
// the status changed. REVOKED is terminal, so revoking twice reports no change.
func TransitionToRevoked(s *Statement) (*Statement, bool, error) {
	next := *s
	switch s.Status {
	case StatementStatusActive:
		next.Status = StatementStatusRevoked
		return &next, true, nil
	case StatementStatusRevoked:
		return &next, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatementStatus, s.Status)
	}
}
