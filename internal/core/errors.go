package core

import "errors"

// ErrInvariant marks a catalog consistency violation: a duplicate absolute
// path insert, or a path instance referencing a content key that does not
// exist. These signal a logic defect and are surfaced immediately rather
// than handled as recoverable runtime conditions.
var ErrInvariant = errors.New("catalog invariant violation")
