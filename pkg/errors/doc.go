// Package errors provides the classified error taxonomy for the admin dashboard.
//
// Backend errors are classified once, at the backend boundary, into a closed
// set of kinds. Everything above the backend inspects the Kind, never driver
// codes or message text.
//
// # Kinds
//
//   - KindNotFound: an expected single row is absent
//   - KindMultipleRows: a single-row fetch matched more than one row
//   - KindAccessDenied: the backend refused the read by policy
//   - KindTimeout: the call exceeded its client-side deadline
//   - KindMissingRelationship: a joined query hit a schema without the expected relations
//   - KindValidation: input rejected before reaching the backend
//   - KindMutationFailed: a write was attempted and failed
//   - KindUnauthenticated: no usable session
//   - KindUnknown: everything else
//
// # Basic Usage
//
//	import apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
//
//	// Classify at the backend boundary
//	return apperrors.Wrap(err, apperrors.KindAccessDenied, "profiles read blocked")
//
//	// Branch on the kind
//	switch apperrors.KindOf(err) {
//	case apperrors.KindNotFound:
//		// provision
//	case apperrors.KindAccessDenied, apperrors.KindTimeout:
//		// degrade
//	}
//
// Read errors of kind AccessDenied and Timeout are degradable (see IsDegradable):
// the caller substitutes an unprivileged result instead of failing. Write errors are
// never swallowed.
//
// # HTTP Mapping
//
//	status := apperrors.HTTPStatus(apperrors.KindOf(err))
package errors
